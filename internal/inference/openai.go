package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"anonlab/internal/domain"
)

const defaultOpenAIURL = "http://localhost:8000/v1"

// OpenAI talks to any server implementing the OpenAI chat completions API
// (vLLM, llama.cpp server, LM Studio).
type OpenAI struct {
	client *resty.Client
	model  string
}

// NewOpenAI reads the API key from cfg.APIKeyEnv. Local servers usually need
// no key, so a missing one is not an error.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai provider requires a model")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIURL
	}
	client := newClient(strings.TrimRight(base, "/"), cfg.Timeout)
	if key := apiKey(cfg.APIKeyEnv); key != "" {
		client.SetAuthToken(key)
	}
	return &OpenAI{client: client, model: cfg.Model}, nil
}

func (o *OpenAI) Name() string { return ProviderOpenAI + ":" + o.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, s domain.Sampling) (domain.Generation, error) {
	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       o.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: s.Temperature,
			TopP:        s.TopP,
			MaxTokens:   s.MaxTokens,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err := classify("openai chat", resp, err); err != nil {
		return domain.Generation{}, err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return domain.Generation{}, fmt.Errorf("openai chat: empty response")
	}
	return domain.Generation{
		Text:       strings.TrimSpace(out.Choices[0].Message.Content),
		TokensUsed: out.Usage.TotalTokens,
	}, nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (o *OpenAI) Models(ctx context.Context) ([]string, error) {
	var out modelsResponse
	resp, err := o.client.R().SetContext(ctx).SetResult(&out).Get("/models")
	if err := classify("openai models", resp, err); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (o *OpenAI) Health(ctx context.Context) error {
	models, err := o.Models(ctx)
	if err != nil {
		return err
	}
	return requireModel(o.model, models)
}

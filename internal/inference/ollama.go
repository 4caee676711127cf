package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"anonlab/internal/domain"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama talks to a local Ollama server through /api/generate.
type Ollama struct {
	client *resty.Client
	model  string
}

func NewOllama(cfg Config) *Ollama {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaURL
	}
	return &Ollama{client: newClient(strings.TrimRight(base, "/"), cfg.Timeout), model: cfg.Model}
}

func (o *Ollama) Name() string { return ProviderOllama + ":" + o.model }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (o *Ollama) Generate(ctx context.Context, prompt string, s domain.Sampling) (domain.Generation, error) {
	var out ollamaGenerateResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(ollamaGenerateRequest{
			Model:  o.model,
			Prompt: prompt,
			Options: ollamaOptions{
				Temperature: s.Temperature,
				TopP:        s.TopP,
				NumPredict:  s.MaxTokens,
			},
		}).
		SetResult(&out).
		Post("/api/generate")
	if err := classify("ollama generate", resp, err); err != nil {
		return domain.Generation{}, err
	}
	if strings.TrimSpace(out.Response) == "" {
		return domain.Generation{}, fmt.Errorf("ollama generate: empty response")
	}
	return domain.Generation{
		Text:       strings.TrimSpace(out.Response),
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the models installed on the server.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	var out ollamaTagsResponse
	resp, err := o.client.R().SetContext(ctx).SetResult(&out).Get("/api/tags")
	if err := classify("ollama tags", resp, err); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Health succeeds when the server answers and the configured model is
// installed. "llama3" matches an installed "llama3:latest".
func (o *Ollama) Health(ctx context.Context) error {
	models, err := o.Models(ctx)
	if err != nil {
		return err
	}
	return requireModel(o.model, models)
}

func requireModel(model string, available []string) error {
	if model == "" {
		return nil
	}
	for _, m := range available {
		if m == model || strings.TrimSuffix(m, ":latest") == model {
			return nil
		}
	}
	return fmt.Errorf("%w: model %s not available (have %s)", domain.ErrServiceUnavailable, model, strings.Join(available, ", "))
}

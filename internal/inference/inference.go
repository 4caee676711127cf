// Package inference adapts local language-model servers to domain.Generator.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"anonlab/internal/domain"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	defaultTimeout = 120 * time.Second
)

// Config selects and configures the inference adapter.
type Config struct {
	Provider  string
	BaseURL   string
	Model     string
	APIKeyEnv string
	Timeout   time.Duration
}

// New builds the Generator named by cfg.Provider.
func New(cfg Config) (domain.Generator, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		return NewOllama(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", cfg.Provider)
	}
}

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// classify maps transport failures and 5xx answers to
// domain.ErrServiceUnavailable. Other HTTP errors are returned as is.
func classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", op, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%s: %w: %v", op, domain.ErrServiceUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrServiceUnavailable, resp.Status())
	}
	if resp.IsError() {
		return fmt.Errorf("%s: unexpected status %s: %s", op, resp.Status(), truncate(resp.String(), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func apiKey(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

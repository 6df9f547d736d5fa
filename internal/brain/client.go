// Package brain is the boundary to the external reasoning capability. The
// rest of the gateway only sees Complete(prompt) -> text.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is a single normalized completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// Client produces a completion for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient builds a client for the configured mode. Auto prefers the real
// engine when a key is present and otherwise degrades to the mock so the
// gateway stays usable offline.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewFallbackClient(NewOpenAIClient(cfg), NewMockClient()), nil
		}
		return NewMockClient(), nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for openai brain mode")
		}
		return NewOpenAIClient(cfg), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported brain mode %q", cfg.Mode)
	}
}

// FallbackClient tries the primary client first and falls back on error.
// Context cancellation is never masked by a fallback answer.
type FallbackClient struct {
	primary  Client
	fallback Client
}

func NewFallbackClient(primary, fallback Client) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (string, error) {
	text, err := c.primary.Complete(ctx, req)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if c.fallback == nil {
		return "", err
	}
	fallbackText, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary brain error: %w; fallback brain error: %v", err, fallbackErr)
	}
	return fallbackText, nil
}

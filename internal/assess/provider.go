// Package assess turns free-text daily commits into checkpoint progress by
// way of an external language-model assessment service.
//
// The service sits behind the Provider interface and is treated as a black
// box that must return JSON conforming to the assessment schema; anything
// else is rejected before it can touch the stores.
package assess

import (
	"context"
	"encoding/json"
	"fmt"

	"questlog/internal/config"
)

// Provider is the narrow interface to the external assessment service.
type Provider interface {
	// Generate sends a prompt and returns JSON conforming to the request
	// schema. Implementations validate the response before returning it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured
	// to use.
	ModelID() string
}

// Request describes one assessment call.
type Request struct {
	System    string
	Prompt    string
	Schema    *Schema
	MaxTokens int
}

// Response holds the service's validated JSON output.
type Response struct {
	Content json.RawMessage
	Model   string
}

// Schema defines the JSON structure expected from the service.
type Schema struct {
	Name       string
	Definition map[string]any
}

// NewProvider creates a Provider from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey(), cfg.Model)
	case "openai":
		return NewOpenAIProvider(cfg.APIKey(), cfg.Model)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("assess: unknown provider %q", cfg.Provider)
	}
}

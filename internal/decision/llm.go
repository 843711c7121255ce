// Package decision turns an external language-model call into exactly one
// validated protocol action per agent per round. Any failure along the way
// degrades to a WAIT action; the round never aborts because one backend
// misbehaved.
package decision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Prompt carries the system and user halves of one generation request.
type Prompt struct {
	System string
	User   string
}

// Client is a minimal text-generation backend.
type Client interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
	Provider() string
	Model() string
}

// ClientConfig selects and tunes a backend.
type ClientConfig struct {
	Provider        string
	Model           string
	BaseURL         string
	APIKey          string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

// NewClient builds a backend client for the configured provider.
func NewClient(cfg ClientConfig) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	switch provider {
	case "openai":
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if apiKey == "" {
			return nil, errors.New("decision: openai selected but no API key provided (OPENAI_API_KEY)")
		}
		model := strings.TrimSpace(cfg.Model)
		if model == "" {
			return nil, errors.New("decision: openai selected but no model configured")
		}
		baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return &openAIClient{
			baseURL:         baseURL,
			apiKey:          apiKey,
			model:           model,
			temperature:     cfg.Temperature,
			maxOutputTokens: cfg.MaxOutputTokens,
			timeout:         timeout,
		}, nil
	case "ollama":
		model := strings.TrimSpace(cfg.Model)
		if model == "" {
			model = "llama3.2"
		}
		baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return &ollamaClient{
			baseURL:         baseURL,
			model:           model,
			temperature:     cfg.Temperature,
			maxOutputTokens: cfg.MaxOutputTokens,
			timeout:         timeout,
		}, nil
	default:
		return nil, fmt.Errorf("decision: unknown provider %q", cfg.Provider)
	}
}

package llm

import (
	"fmt"
	"log/slog"

	"github.com/rpggio/loreweave/internal/domain/generation"
)

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	MaxTokens   int
}

// New creates the configured provider. Selection happens here, at startup,
// and nowhere else; the stub is announced at Warn so canned content is never
// mistaken for generated content.
func New(cfg Config, logger *slog.Logger) (generation.Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch cfg.Provider {
	case "openai":
		provider, err := NewOpenAI(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("generation provider: openai", "model", cfg.Model, "base_url", cfg.BaseURL)
		return provider, nil
	case "stub":
		logger.Warn("generation provider: stub (canned content)")
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %q", cfg.Provider)
	}
}

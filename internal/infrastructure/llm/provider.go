package llm

import (
	"context"
	"fmt"

	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
)

// New returns the configured completer, or nil when drafting is disabled.
func New(ctx context.Context, cfg config.LLMConfig) (ports.Completer, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case "gemini":
		g, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

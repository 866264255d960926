package llm

import (
	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/config"
)

var ErrUnknownProvider = errors.New("unknown llm provider")

// NewFromConfig builds the configured provider wrapped in the rate limiter.
func NewFromConfig(cfg *config.Config) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.LLMProvider {
	case "anthropic", "":
		p, err = NewAnthropicProvider(AnthropicConfig{
			APIKey:     cfg.LLMAPIKey,
			Model:      cfg.LLMModel,
			BaseURL:    cfg.LLMBaseURL,
			Timeout:    cfg.LLMTimeout,
			MaxRetries: 2,
		})
	case "openai":
		p, err = NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.LLMBaseURL,
			Timeout: cfg.LLMTimeout,
		})
	default:
		return nil, errors.Wrap(ErrUnknownProvider, cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	return NewRateLimited(p, cfg.LLMPerMinute), nil
}

// Package answer produces natural-language answers from retrieved context.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/rag-assistant/internal/embedding"
)

// FallbackText is returned to users when answer generation fails.
const FallbackText = "I apologize, but I encountered an error while generating the answer. Please try again."

// Providers accepted by New. ProviderAuto selects openai when an API key is
// configured and static otherwise.
const (
	ProviderAuto   = "auto"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Answer is a generated response and the tokens it cost.
type Answer struct {
	Text       string
	TokenCount int
}

// Answerer generates an answer to query grounded in contexts, which are
// ordered most relevant first.
type Answerer interface {
	Answer(ctx context.Context, query string, contexts []string) (Answer, error)
}

type Config struct {
	Provider         string        `koanf:"provider"           validate:"oneof=auto openai static"`
	Model            string        `koanf:"model"`
	APIKey           string        `koanf:"api_key"`
	BaseURL          string        `koanf:"base_url"`
	MaxContextTokens int           `koanf:"max_context_tokens" validate:"gt=0"`
	MaxTokens        int           `koanf:"max_tokens"         validate:"gte=0"`
	Temperature      float64       `koanf:"temperature"        validate:"gte=0,lte=2"`
	Timeout          time.Duration `koanf:"timeout"            validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		Provider:         ProviderAuto,
		Model:            DefaultModel,
		MaxContextTokens: DefaultMaxContextTokens,
		MaxTokens:        1024,
		Timeout:          60 * time.Second,
	}
}

// Validate checks settings that depend on the provider.
func (c Config) Validate() error {
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return errors.New("answer.api_key is required for the openai provider")
	}
	return nil
}

// New builds the configured answerer.
func New(cfg Config, logger *slog.Logger) (Answerer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := cfg.Provider
	if provider == "" || provider == ProviderAuto {
		provider = ProviderStatic
		if cfg.APIKey != "" {
			provider = ProviderOpenAI
		}
	}

	switch provider {
	case ProviderStatic:
		logger.Warn("no language model configured; answers echo the best matching context")
		return NewStaticAnswerer(), nil
	case ProviderOpenAI:
		client, err := embedding.NewClient(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return NewOpenAIAnswerer(client.Client(), cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown answer provider %q", cfg.Provider)
	}
}

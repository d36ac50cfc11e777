// Package embedding turns text into fixed-length vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Providers accepted by New.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// ErrEmptyText is returned for blank input. Blank text has no meaningful vector.
var ErrEmptyText = errors.New("cannot embed empty text")

// Embedder maps text to a vector of exactly Dimension() components. The same
// input always yields the same vector for a given embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// BatchEmbedder is implemented by embedders that can embed many texts in one
// round trip. Results are in input order.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config selects and tunes the embedding provider.
type Config struct {
	Provider  string `koanf:"provider"   validate:"oneof=hash openai"`
	Model     string `koanf:"model"`
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	Dimension int    `koanf:"dimension"  validate:"gt=0"`
	CacheSize int    `koanf:"cache_size" validate:"gte=0"`
	BatchSize int    `koanf:"batch_size" validate:"gte=0"`
}

// DefaultConfig returns the offline hash embedder at 384 dimensions.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderHash,
		Model:     EmbeddingModel,
		Dimension: 384,
		CacheSize: 1024,
		BatchSize: DefaultBatchSize,
	}
}

// Validate checks settings that depend on the provider.
func (c Config) Validate() error {
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return errors.New("embedding.api_key is required for the openai provider")
	}
	return nil
}

// New builds the configured embedder, wrapped in an LRU cache when
// cfg.CacheSize is positive.
func New(cfg Config, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultConfig().Dimension
	}

	var e Embedder
	switch cfg.Provider {
	case "", ProviderHash:
		logger.Warn("using hash embedder; vectors carry no semantic meaning", "dimension", cfg.Dimension)
		e = NewHashEmbedder(cfg.Dimension)
	case ProviderOpenAI:
		client, err := NewClient(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		e = NewOpenAIEmbedder(client, OpenAIOptions{
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachedEmbedder(e, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return e, nil
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

// EmbedAll embeds texts in order, using one batch call when e supports it.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if err := checkText(text); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	if b, ok := e.(BatchEmbedder); ok {
		return b.EmbedBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

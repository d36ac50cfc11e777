package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// EmbeddingModel is the default OpenAI embedding model.
	EmbeddingModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
	DefaultBatchSize = 500
)

// OpenAIOptions configures an OpenAIEmbedder.
type OpenAIOptions struct {
	Model     string
	Dimension int
	BatchSize int
}

// OpenAIEmbedder requests vectors of a fixed dimension from the OpenAI
// embeddings API. It batches requests and retries rate limit errors with
// exponential backoff.
type OpenAIEmbedder struct {
	client    *Client
	model     string
	dimension int
	batchSize int
}

// NewOpenAIEmbedder creates an embedder. Zero options take their defaults.
func NewOpenAIEmbedder(client *Client, opts OpenAIOptions) *OpenAIEmbedder {
	if opts.Model == "" {
		opts.Model = EmbeddingModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultConfig().Dimension
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &OpenAIEmbedder{
		client:    client,
		model:     opts.Model,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	vectors, err := e.embedBatchWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for the given texts in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		vectors, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: openai.Int(int64(e.dimension)),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
		}

		vectors = make([][]float32, len(texts))
		for _, data := range resp.Data {
			if data.Index < 0 || int(data.Index) >= len(texts) {
				return backoff.Permanent(fmt.Errorf("embedding index %d out of range", data.Index))
			}
			if len(data.Embedding) != e.dimension {
				return backoff.Permanent(fmt.Errorf("embedding has %d dimensions, expected %d",
					len(data.Embedding), e.dimension))
			}
			vectors[data.Index] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vectors, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but storage uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

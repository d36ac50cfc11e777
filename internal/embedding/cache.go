package embedding

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes another embedder's vectors in an LRU keyed by text.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(next Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

// Embed returns a copy of the cached vector so callers may modify it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return slices.Clone(v), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, slices.Clone(v))
	return v, nil
}

// EmbedBatch serves cached texts locally and forwards only the misses.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = slices.Clone(v)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := EmbedAll(ctx, c.next, missTexts)
	if err != nil {
		return nil, err
	}
	for j, v := range vectors {
		out[missIdx[j]] = v
		c.cache.Add(missTexts[j], slices.Clone(v))
	}
	return out, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

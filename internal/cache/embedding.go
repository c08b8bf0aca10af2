package cache

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ppiankov/donortrace/internal/metrics"
)

// Embedder matches llm.Embedder
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache memoises phrase vectors in an LRU so repeated phrases
// across batches and themes are embedded once.
type EmbeddingCache struct {
	inner   Embedder
	lru     *lru.Cache[string, []float32]
	metrics *metrics.Collector
}

// NewEmbeddingCache wraps inner with an LRU of size entries
func NewEmbeddingCache(inner Embedder, size int, m *metrics.Collector) (*EmbeddingCache, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &EmbeddingCache{inner: inner, lru: c, metrics: m}, nil
}

// Embed returns cached vectors and embeds only the misses
func (c *EmbeddingCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := c.lru.Get(embeddingKey(text)); ok {
			vectors[i] = v
			c.metrics.ObserveCache("embedding", true)
			continue
		}
		c.metrics.ObserveCache("embedding", false)
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		vectors[i] = fresh[j]
		c.lru.Add(embeddingKey(missTexts[j]), fresh[j])
	}
	return vectors, nil
}

// Len returns the number of cached phrases
func (c *EmbeddingCache) Len() int {
	return c.lru.Len()
}

func embeddingKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

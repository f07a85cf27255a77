package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"
)

const embeddingKeyPrefix = "embedding:"

// CachedEmbedder memoizes embeddings in a Cache. Cache failures are logged
// and fall through to the wrapped embedder.
type CachedEmbedder struct {
	next   Embedder
	cache  Cache
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps next. model is part of the cache key so switching
// embedding models never serves stale vectors.
func NewCachedEmbedder(next Embedder, cache Cache, model string, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if raw, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("Embedding cache read failed", "error", err)
	} else if raw != "" {
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
		c.logger.Warn("Discarding corrupt cached embedding", "key", key)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
			c.logger.Warn("Embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return embeddingKeyPrefix + hex.EncodeToString(sum[:])
}

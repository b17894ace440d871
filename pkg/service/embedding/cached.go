package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

// CacheLayer is a named cache consulted by Cached
type CacheLayer struct {
	Name  string
	Cache interfaces.EmbeddingCache
	TTL   time.Duration
}

// Cached serves single-text embeddings (queries) from a stack of caches,
// fastest first. A hit in a slower layer is copied into the faster ones.
// Batch embedding (ingestion) bypasses the caches. Cache failures are logged
// and treated as misses.
type Cached struct {
	inner   interfaces.Embedder
	layers  []CacheLayer
	version string
	metrics *metrics.Registry
}

var _ interfaces.Embedder = &Cached{}

// NewCached wraps inner. version identifies the model so cached vectors of a
// different model are never returned.
func NewCached(inner interfaces.Embedder, version string, m *metrics.Registry, layers ...CacheLayer) *Cached {
	return &Cached{inner: inner, layers: layers, version: version, metrics: m}
}

func (c *Cached) Dimension() int {
	return c.inner.Dimension()
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	logger := logging.From(ctx)

	for i, layer := range c.layers {
		vec, ok, err := layer.Cache.Get(ctx, key)
		if err != nil {
			logger.Warn("embedding cache lookup failed", "layer", layer.Name, "error", err)
			ok = false
		}
		if ok && len(vec) != c.inner.Dimension() {
			ok = false
		}
		c.metrics.ObserveEmbeddingCache(layer.Name, ok)
		if ok {
			c.fill(ctx, c.layers[:i], key, vec)
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, c.layers, key, vec)
	return vec, nil
}

func (c *Cached) fill(ctx context.Context, layers []CacheLayer, key string, vec []float32) {
	for _, layer := range layers {
		if err := layer.Cache.Set(ctx, key, vec, layer.TTL); err != nil {
			logging.From(ctx).Warn("failed to populate embedding cache", "layer", layer.Name, "error", err)
		}
	}
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.version + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

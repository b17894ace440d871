package interfaces

import (
	"context"
	"time"
)

// Embedder maps text to a fixed-length dense vector. Implementations must be
// deterministic for a fixed model version and must fail instead of returning
// a zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int
}

// EmbeddingCache stores query embeddings. A miss is reported with ok=false
// and a nil error.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) (vector []float32, ok bool, err error)
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
}

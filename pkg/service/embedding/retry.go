package embedding

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

// DefaultRetryBackoff is the pause before the single retry
const DefaultRetryBackoff = 200 * time.Millisecond

// Retrying retries a failed embedding call once and tags a final failure as
// model unavailable. It also rejects zero vectors from the inner embedder.
type Retrying struct {
	inner   interfaces.Embedder
	backoff time.Duration
	metrics *metrics.Registry
}

var _ interfaces.Embedder = &Retrying{}

type RetryOption func(*Retrying)

func WithRetryBackoff(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.backoff = d
	}
}

func WithRetryMetrics(m *metrics.Registry) RetryOption {
	return func(r *Retrying) {
		r.metrics = m
	}
}

func NewRetrying(inner interfaces.Embedder, opts ...RetryOption) *Retrying {
	r := &Retrying{inner: inner, backoff: DefaultRetryBackoff}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) Dimension() int {
	return r.inner.Dimension()
}

func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (r *Retrying) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := r.attempt(ctx, texts)
	if err == nil {
		return vectors, nil
	}

	logging.From(ctx).Warn("embedding failed, retrying once", "error", err, "count", len(texts))
	r.metrics.IncEmbeddingRetry()

	select {
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "embedding cancelled before retry", goerr.T(model.TagModelUnavailable))
	case <-time.After(r.backoff):
	}

	vectors, err = r.attempt(ctx, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "embedding model unavailable", goerr.T(model.TagModelUnavailable))
	}
	return vectors, nil
}

func (r *Retrying) attempt(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := r.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, goerr.New("embedding count does not match input",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(vectors)))
	}
	for i, vec := range vectors {
		if isZero(vec) {
			return nil, goerr.New("embedder returned a zero vector", goerr.V("index", i))
		}
	}
	return vectors, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

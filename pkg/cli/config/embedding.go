package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
	"github.com/urfave/cli/v3"
)

const (
	EmbeddingBackendGemini  = "gemini"
	EmbeddingBackendHashing = "hashing"
)

// Embedding holds CLI flags for the embedding provider and its query caches
type Embedding struct {
	backend   string
	dimension int
	lruSize   int
	redisAddr string
	redisTTL  time.Duration
}

func (e *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-backend",
			Category:    "Embedding",
			Usage:       "Embedding provider (gemini, hashing)",
			Value:       EmbeddingBackendGemini,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_BACKEND"),
			Destination: &e.backend,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Category:    "Embedding",
			Usage:       "Embedding vector dimension",
			Value:       model.EmbeddingDimension,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_DIMENSION"),
			Destination: &e.dimension,
		},
		&cli.IntFlag{
			Name:        "embedding-cache-size",
			Category:    "Embedding",
			Usage:       "Number of query embeddings kept in memory (0 disables)",
			Value:       1024,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_CACHE_SIZE"),
			Destination: &e.lruSize,
		},
		&cli.StringFlag{
			Name:        "embedding-redis-addr",
			Category:    "Embedding",
			Usage:       "Redis address for the shared query embedding cache (empty disables)",
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_REDIS_ADDR"),
			Destination: &e.redisAddr,
		},
		&cli.DurationFlag{
			Name:        "embedding-redis-ttl",
			Category:    "Embedding",
			Usage:       "Expiry of query embeddings stored in Redis",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_REDIS_TTL"),
			Destination: &e.redisTTL,
		},
	}
}

func (e *Embedding) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("backend", e.backend),
		slog.Int("dimension", e.dimension),
		slog.Int("cache_size", e.lruSize),
		slog.String("redis_addr", e.redisAddr),
		slog.Duration("redis_ttl", e.redisTTL),
	}
}

// Dimension returns the configured vector dimension
func (e *Embedding) Dimension() int {
	return e.dimension
}

// Configure builds the embedder stack: provider, single retry, then query
// caches. client is required for the gemini backend. The returned function
// releases cache connections.
func (e *Embedding) Configure(ctx context.Context, client gollem.LLMClient, m *metrics.Registry) (interfaces.Embedder, func(), error) {
	if e.dimension <= 0 {
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "embedding dimension must be positive", goerr.V("dimension", e.dimension))
	}

	var provider interfaces.Embedder
	switch e.backend {
	case EmbeddingBackendGemini:
		if client == nil {
			return nil, nil, goerr.Wrap(ErrInvalidConfig, "gemini-project is required for the gemini embedding backend")
		}
		g, err := embedding.NewGollem(client, e.dimension)
		if err != nil {
			return nil, nil, err
		}
		provider = g
	case EmbeddingBackendHashing:
		logging.From(ctx).Warn("Using hashing embedder (development mode); results are lexical only")
		provider = embedding.NewHashing(e.dimension)
	default:
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "invalid embedding backend", goerr.V("backend", e.backend))
	}

	retrying := embedding.NewRetrying(provider, embedding.WithRetryMetrics(m))

	closer := func() {}
	var layers []embedding.CacheLayer
	if e.lruSize > 0 {
		lru, err := embedding.NewLRUCache(e.lruSize)
		if err != nil {
			return nil, nil, err
		}
		layers = append(layers, embedding.CacheLayer{Name: "memory", Cache: lru})
	}
	if e.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: e.redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", e.redisAddr))
		}
		layers = append(layers, embedding.CacheLayer{Name: "redis", Cache: embedding.NewRedisCache(rdb), TTL: e.redisTTL})
		closer = func() { _ = rdb.Close() }
	}

	if len(layers) == 0 {
		return retrying, closer, nil
	}
	version := fmt.Sprintf("%s/%d", e.backend, e.dimension)
	return embedding.NewCached(retrying, version, m, layers...), closer, nil
}

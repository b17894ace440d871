package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
)

// LRUCache is an in-process query embedding cache. Entries do not expire;
// the ttl argument of Set is ignored.
type LRUCache struct {
	cache *lru.Cache[string, []float32]
}

var _ interfaces.EmbeddingCache = &LRUCache{}

func NewLRUCache(size int) (*LRUCache, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LRU cache", goerr.V("size", size))
	}
	return &LRUCache{cache: cache}, nil
}

func (c *LRUCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	vec, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return cloneVector(vec), true, nil
}

func (c *LRUCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	c.cache.Add(key, cloneVector(vector))
	return nil
}

// RedisCache shares query embeddings across processes. Vectors are stored as
// little-endian float32 bytes.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ interfaces.EmbeddingCache = &RedisCache{}

const defaultRedisPrefix = "mnemosyne:embedding:"

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: defaultRedisPrefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to get embedding from redis", goerr.V("key", key))
	}

	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, goerr.Wrap(err, "corrupt cached embedding", goerr.V("key", key))
	}
	return vec, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, encodeVector(vector), ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to store embedding in redis", goerr.V("key", key))
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, goerr.New("vector byte length is not a multiple of 4", goerr.V("length", len(data)))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}

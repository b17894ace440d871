package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type chunkRepository struct {
	mu        sync.RWMutex
	entries   map[model.RecordID][]*model.Chunk
	dimension int // fixed by the first non-empty write
}

func newChunkRepository() *chunkRepository {
	return &chunkRepository{
		entries: make(map[model.RecordID][]*model.Chunk),
	}
}

func copyChunk(c *model.Chunk) *model.Chunk {
	copied := &model.Chunk{
		RecordID:    c.RecordID,
		Index:       c.Index,
		Text:        c.Text,
		StartOffset: c.StartOffset,
		EndOffset:   c.EndOffset,
	}
	if c.Embedding != nil {
		copied.Embedding = make([]float32, len(c.Embedding))
		copy(copied.Embedding, c.Embedding)
	}
	if c.Metadata != nil {
		copied.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}

func (r *chunkRepository) ReplaceChunks(ctx context.Context, recordID model.RecordID, chunks []*model.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := r.dimension
	if dim == 0 && len(chunks) > 0 {
		dim = len(chunks[0].Embedding)
	}
	if err := model.CheckDimension(chunks, dim); err != nil {
		return err
	}

	stored := make([]*model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.RecordID != recordID {
			return goerr.New("chunk belongs to another record",
				goerr.V("record_id", recordID),
				goerr.V("chunk_record_id", c.RecordID))
		}
		stored = append(stored, copyChunk(c))
	}

	if len(stored) == 0 {
		delete(r.entries, recordID)
		return nil
	}

	r.dimension = dim
	r.entries[recordID] = stored
	return nil
}

func (r *chunkRepository) CountChunks(ctx context.Context, recordID model.RecordID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries[recordID]), nil
}

func (r *chunkRepository) Nearest(ctx context.Context, vector []float32, limit int) ([]*model.ChunkHit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return []*model.ChunkHit{}, nil
	}

	var candidates []*model.ChunkHit
	for _, chunks := range r.entries {
		for _, c := range chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			candidates = append(candidates, &model.ChunkHit{
				RecordID: c.RecordID,
				Index:    c.Index,
				Text:     c.Text,
				Distance: 1 - cosineSimilarity(vector, c.Embedding),
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		if candidates[i].RecordID != candidates[j].RecordID {
			return candidates[i].RecordID < candidates[j].RecordID
		}
		return candidates[i].Index < candidates[j].Index
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

func (r *chunkRepository) ExactFilterCount(ctx context.Context, filter model.FieldFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, chunks := range r.entries {
		for _, c := range chunks {
			if v, ok := c.Metadata[filter.Field]; ok && filter.Matches(v) {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *chunkRepository) ThresholdCount(ctx context.Context, vector []float32, threshold float64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, chunks := range r.entries {
		for _, c := range chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			if cosineSimilarity(vector, c.Embedding) >= threshold {
				count++
				break
			}
		}
	}
	return count, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}

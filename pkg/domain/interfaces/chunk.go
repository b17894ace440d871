package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// ChunkRepository persists embedded chunks and answers vector queries.
// Writes happen out-of-band during ingestion; serving treats it as read-only.
type ChunkRepository interface {
	// ReplaceChunks atomically replaces all chunks of recordID
	ReplaceChunks(ctx context.Context, recordID model.RecordID, chunks []*model.Chunk) error

	// CountChunks returns the number of stored chunks of recordID
	CountChunks(ctx context.Context, recordID model.RecordID) (int, error)

	// Nearest returns up to limit chunks ordered by ascending cosine distance
	Nearest(ctx context.Context, vector []float32, limit int) ([]*model.ChunkHit, error)

	// ExactFilterCount returns the number of distinct records whose chunk
	// metadata matches filter
	ExactFilterCount(ctx context.Context, filter model.FieldFilter) (int, error)

	// ThresholdCount returns the number of distinct records having at least
	// one chunk with similarity (1 - cosine distance) >= threshold
	ThresholdCount(ctx context.Context, vector []float32, threshold float64) (int, error)
}

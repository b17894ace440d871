package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingDimension is the default dimension of stored embeddings.
// Gemini text-embedding-004 uses 768 dimensions.
const EmbeddingDimension = 768

// ErrDimensionMismatch is returned when an embedding does not have the
// dimension the store was configured with
var ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

// Chunk is a bounded window of a record's weighted text. Offsets are rune
// offsets into the weighted text; Index is zero-based and contiguous per record.
type Chunk struct {
	RecordID    RecordID
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
	Embedding   []float32

	// Metadata carries filterable record fields so exact counts can be
	// computed from the chunk store alone.
	Metadata map[string]string
}

// ChunkHit is a nearest-neighbor candidate returned by the chunk store
type ChunkHit struct {
	RecordID RecordID
	Index    int
	Text     string
	Distance float64
}

// Similarity converts cosine distance into similarity (1 - distance)
func (h ChunkHit) Similarity() float64 {
	return 1 - h.Distance
}

// CheckDimension verifies every chunk embedding has dim entries
func CheckDimension(chunks []*Chunk, dim int) error {
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			return goerr.Wrap(ErrDimensionMismatch, "chunk embedding has unexpected dimension",
				goerr.V("record_id", c.RecordID),
				goerr.V("chunk_index", c.Index),
				goerr.V("expected", dim),
				goerr.V("actual", len(c.Embedding)))
		}
	}
	return nil
}

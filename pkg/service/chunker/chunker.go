package chunker

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

const (
	DefaultMaxChunkSize = 500
	DefaultOverlap      = 50
	DefaultMaxChunks    = 20
)

// Chunker turns records into overlapping windows of their weighted text
type Chunker struct {
	table        *config.FieldTable
	maxChunkSize int
	overlap      int
	maxChunks    int
	metrics      *metrics.Registry
}

type Option func(*Chunker)

func WithMaxChunkSize(n int) Option {
	return func(c *Chunker) {
		c.maxChunkSize = n
	}
}

func WithOverlap(n int) Option {
	return func(c *Chunker) {
		c.overlap = n
	}
}

// WithMaxChunks sets the per-record chunk ceiling; windows beyond it are dropped
func WithMaxChunks(n int) Option {
	return func(c *Chunker) {
		c.maxChunks = n
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Chunker) {
		c.metrics = m
	}
}

// New creates a Chunker. The window must be larger than the overlap so every
// step advances.
func New(table *config.FieldTable, opts ...Option) (*Chunker, error) {
	if table == nil {
		return nil, goerr.New("field table is required")
	}

	c := &Chunker{
		table:        table,
		maxChunkSize: DefaultMaxChunkSize,
		overlap:      DefaultOverlap,
		maxChunks:    DefaultMaxChunks,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxChunkSize <= 0 {
		return nil, goerr.New("max chunk size must be positive", goerr.V("max_chunk_size", c.maxChunkSize))
	}
	if c.overlap < 0 || c.overlap >= c.maxChunkSize {
		return nil, goerr.New("overlap must be in [0, max chunk size)",
			goerr.V("overlap", c.overlap),
			goerr.V("max_chunk_size", c.maxChunkSize))
	}
	if c.maxChunks <= 0 {
		return nil, goerr.New("max chunks must be positive", goerr.V("max_chunks", c.maxChunks))
	}
	return c, nil
}

// Table returns the field table the chunker renders with
func (c *Chunker) Table() *config.FieldTable {
	return c.table
}

// WeightAndChunk renders record and splits it into chunks carrying the
// record's filterable metadata. Embeddings are left empty.
func (c *Chunker) WeightAndChunk(ctx context.Context, record *model.Record) []*model.Chunk {
	if record == nil {
		return nil
	}
	text := WeightedText(c.table, record)
	chunks := c.Split(ctx, record.ID, text)

	meta := Metadata(c.table, record)
	for _, chunk := range chunks {
		chunk.Metadata = meta
	}
	return chunks
}

// Split slides a window of maxChunkSize runes over text, stepping by
// maxChunkSize-overlap, until a window reaches the end of the text. Empty text
// yields a single empty chunk.
func (c *Chunker) Split(ctx context.Context, recordID model.RecordID, text string) []*model.Chunk {
	runes := []rune(text)
	n := len(runes)
	step := c.maxChunkSize - c.overlap

	var chunks []*model.Chunk
	start := 0
	for {
		end := min(start+c.maxChunkSize, n)
		if len(chunks) == c.maxChunks {
			dropped := 0
			for s := start; ; s += step {
				dropped++
				if s+c.maxChunkSize >= n {
					break
				}
			}
			logging.From(ctx).Warn("record exceeded chunk ceiling; trailing text dropped",
				"record_id", recordID,
				"max_chunks", c.maxChunks,
				"dropped_chunks", dropped,
				"text_runes", n)
			c.metrics.AddChunksTruncated(dropped)
			break
		}

		chunks = append(chunks, &model.Chunk{
			RecordID:    recordID,
			Index:       len(chunks),
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})

		if end >= n {
			break
		}
		start += step
	}

	return chunks
}

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultIngestWorkers is the default number of records ingested concurrently
const DefaultIngestWorkers = 4

// RecordChunker renders a record into chunks without embeddings
type RecordChunker interface {
	WeightAndChunk(ctx context.Context, record *model.Record) []*model.Chunk
}

// IngestUseCase writes records and their embedded chunks to the stores. It
// is the only writer of the chunk store.
type IngestUseCase struct {
	repo        interfaces.Repository
	chunker     RecordChunker
	embedder    interfaces.Embedder
	concurrency int
	metrics     *metrics.Registry
}

type IngestOption func(*IngestUseCase)

func WithIngestConcurrency(n int) IngestOption {
	return func(uc *IngestUseCase) {
		uc.concurrency = n
	}
}

func WithIngestMetrics(m *metrics.Registry) IngestOption {
	return func(uc *IngestUseCase) {
		uc.metrics = m
	}
}

func NewIngestUseCase(repo interfaces.Repository, chunker RecordChunker, embedder interfaces.Embedder, opts ...IngestOption) *IngestUseCase {
	uc := &IngestUseCase{
		repo:        repo,
		chunker:     chunker,
		embedder:    embedder,
		concurrency: DefaultIngestWorkers,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Ingest stores record and replaces its chunks, returning the number of
// chunks written. A record that renders to empty text keeps no chunks.
// Nothing is written unless every chunk was embedded, so a model failure
// leaves the previous record and chunks in place.
func (uc *IngestUseCase) Ingest(ctx context.Context, record *model.Record) (int, error) {
	if record == nil || record.ID == "" {
		return 0, goerr.Wrap(ErrInvalidRecord, "record ID is required")
	}

	chunks := uc.chunker.WeightAndChunk(ctx, record)
	if isBlank(chunks) {
		logging.From(ctx).Warn("record has no searchable text; clearing its chunks", "record_id", record.ID)
		return 0, uc.store(ctx, record, nil)
	}

	if err := uc.embed(ctx, record.ID, chunks); err != nil {
		return 0, err
	}
	if err := uc.store(ctx, record, chunks); err != nil {
		return 0, err
	}

	uc.metrics.AddChunksWritten(len(chunks))
	return len(chunks), nil
}

func (uc *IngestUseCase) embed(ctx context.Context, recordID model.RecordID, chunks []*model.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return goerr.Wrap(err, "failed to embed chunks",
			goerr.V(RecordIDKey, recordID),
			goerr.V("chunks", len(chunks)),
			goerr.T(model.TagModelUnavailable))
	}
	if len(vectors) != len(chunks) {
		return goerr.New("embedder returned wrong number of vectors",
			goerr.V(RecordIDKey, recordID),
			goerr.V("expected", len(chunks)),
			goerr.V("actual", len(vectors)),
			goerr.T(model.TagModelUnavailable))
	}
	for i, c := range chunks {
		c.Embedding = vectors[i]
	}
	if err := model.CheckDimension(chunks, uc.embedder.Dimension()); err != nil {
		return goerr.Wrap(err, "embedding dimension does not match", goerr.T(model.TagModelUnavailable))
	}
	return nil
}

func (uc *IngestUseCase) store(ctx context.Context, record *model.Record, chunks []*model.Chunk) error {
	if err := uc.repo.Record().PutRecord(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to store record",
			goerr.V(RecordIDKey, record.ID),
			goerr.T(model.TagStoreUnavailable))
	}
	if err := uc.repo.Chunk().ReplaceChunks(ctx, record.ID, chunks); err != nil {
		return goerr.Wrap(err, "failed to replace chunks",
			goerr.V(RecordIDKey, record.ID),
			goerr.T(model.TagStoreUnavailable))
	}
	return nil
}

// IngestFailure is a record IngestBatch could not write
type IngestFailure struct {
	RecordID model.RecordID
	Err      error
}

// IngestReport summarizes an IngestBatch run
type IngestReport struct {
	RunID    string
	Records  int
	Chunks   int
	Empty    int
	Failures []IngestFailure
	Duration time.Duration
}

// IngestBatch ingests records with bounded concurrency. A failing record is
// reported and does not stop the batch; cancellation of ctx does.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, records []*model.Record) (*IngestReport, error) {
	report := &IngestReport{RunID: uuid.NewString()}
	started := time.Now()
	logger := logging.From(ctx).With("run_id", report.RunID)
	ctx = logging.With(ctx, logger)

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	if uc.concurrency > 0 {
		eg.SetLimit(uc.concurrency)
	}

	for _, record := range records {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			n, err := uc.Ingest(egCtx, record)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				id := model.RecordID("")
				if record != nil {
					id = record.ID
				}
				report.Failures = append(report.Failures, IngestFailure{RecordID: id, Err: err})
				logger.Warn("failed to ingest record", "record_id", id, "error", err)
				return nil
			}
			report.Records++
			report.Chunks += n
			if n == 0 {
				report.Empty++
			}
			return nil
		})
	}

	err := eg.Wait()
	report.Duration = time.Since(started)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return report, goerr.Wrap(err, "ingestion interrupted",
			goerr.V("run_id", report.RunID),
			goerr.V("ingested", report.Records))
	}

	logger.Info("ingestion finished",
		"records", report.Records,
		"chunks", report.Chunks,
		"empty", report.Empty,
		"failures", len(report.Failures),
		"duration", report.Duration)
	return report, nil
}

func isBlank(chunks []*model.Chunk) bool {
	for _, c := range chunks {
		if c.Text != "" {
			return false
		}
	}
	return true
}

package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/service/chunker"
	"github.com/secmon-lab/mnemosyne/pkg/service/formatter"
	"github.com/secmon-lab/mnemosyne/pkg/service/query"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

type UseCases struct {
	repo      interfaces.Repository
	embedder  interfaces.Embedder
	tables    *config.Tables
	generator AnswerGenerator
	metrics   *metrics.Registry

	retrievalOpts []retrieval.Option
	chunkerOpts   []chunker.Option
	formatterOpts []formatter.Option
	ingestWorkers int
	defaultTopK   int

	Search *SearchUseCase
	Ingest *IngestUseCase
}

type Option func(*UseCases)

// WithGenerator enables answer generation. Without it Answer can only return
// retrieval results.
func WithGenerator(g AnswerGenerator) Option {
	return func(uc *UseCases) {
		uc.generator = g
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(uc *UseCases) {
		uc.metrics = m
	}
}

func WithRetrievalOptions(opts ...retrieval.Option) Option {
	return func(uc *UseCases) {
		uc.retrievalOpts = append(uc.retrievalOpts, opts...)
	}
}

func WithChunkerOptions(opts ...chunker.Option) Option {
	return func(uc *UseCases) {
		uc.chunkerOpts = append(uc.chunkerOpts, opts...)
	}
}

func WithFormatterOptions(opts ...formatter.Option) Option {
	return func(uc *UseCases) {
		uc.formatterOpts = append(uc.formatterOpts, opts...)
	}
}

// WithIngestWorkers bounds how many records IngestBatch processes at once
func WithIngestWorkers(n int) Option {
	return func(uc *UseCases) {
		uc.ingestWorkers = n
	}
}

// WithDefaultTopK sets the result count used when a caller passes topK <= 0
func WithDefaultTopK(n int) Option {
	return func(uc *UseCases) {
		uc.defaultTopK = n
	}
}

// New wires the retrieval and ingestion pipelines over repo. tables are the
// static field and query tables; both pipelines must use the same ones.
func New(repo interfaces.Repository, embedder interfaces.Embedder, tables *config.Tables, opts ...Option) (*UseCases, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}
	if tables == nil {
		return nil, goerr.New("tables are required")
	}

	uc := &UseCases{
		repo:          repo,
		embedder:      embedder,
		tables:        tables,
		ingestWorkers: DefaultIngestWorkers,
		defaultTopK:   retrieval.DefaultTopK,
	}
	for _, opt := range opts {
		opt(uc)
	}

	understander, err := query.New(&tables.Query, &tables.Fields)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build query understander")
	}

	chunkerOpts := append([]chunker.Option{chunker.WithMetrics(uc.metrics)}, uc.chunkerOpts...)
	ch, err := chunker.New(&tables.Fields, chunkerOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build chunker")
	}

	retrievalOpts := append([]retrieval.Option{retrieval.WithMetrics(uc.metrics)}, uc.retrievalOpts...)
	retriever := retrieval.New(understander, embedder, repo, retrievalOpts...)

	uc.Search = NewSearchUseCase(retriever, formatter.New(&tables.Fields, uc.formatterOpts...), uc.generator,
		WithSearchDefaultTopK(uc.defaultTopK))
	uc.Ingest = NewIngestUseCase(repo, ch, embedder,
		WithIngestConcurrency(uc.ingestWorkers),
		WithIngestMetrics(uc.metrics))

	return uc, nil
}

package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/service/generation"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// pipelineConfig bundles the flags every retrieval-facing command shares
type pipelineConfig struct {
	repo       config.Repository
	gemini     config.Gemini
	embedding  config.Embedding
	retrieval  config.Retrieval
	chunking   config.Chunking
	generation config.Generation
	tables     config.Tables
}

func (p *pipelineConfig) Flags(withGeneration bool) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, p.repo.Flags()...)
	flags = append(flags, p.gemini.Flags()...)
	flags = append(flags, p.embedding.Flags()...)
	flags = append(flags, p.retrieval.Flags()...)
	flags = append(flags, p.chunking.Flags()...)
	flags = append(flags, p.tables.Flags()...)
	if withGeneration {
		flags = append(flags, p.generation.Flags()...)
	}
	return flags
}

func groupAttrs(name string, attrs []slog.Attr) slog.Attr {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return slog.Group(name, args...)
}

// pipeline holds the wired components of one command run
type pipeline struct {
	uc           *usecase.UseCases
	orchestrator *generation.Orchestrator
	metrics      *metrics.Registry
	closers      []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func (p *pipelineConfig) build(ctx context.Context) (*pipeline, error) {
	logger := logging.From(ctx)
	logger.Info("Pipeline configuration",
		groupAttrs("repository", p.repo.LogAttrs()),
		groupAttrs("gemini", p.gemini.LogAttrs()),
		groupAttrs("embedding", p.embedding.LogAttrs()),
		groupAttrs("retrieval", p.retrieval.LogAttrs()),
		groupAttrs("chunking", p.chunking.LogAttrs()),
		groupAttrs("generation", p.generation.LogAttrs()),
		groupAttrs("tables", p.tables.LogAttrs()),
	)

	pl := &pipeline{metrics: metrics.New()}

	tables, err := p.tables.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load tables")
	}

	repo, err := p.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	pl.closers = append(pl.closers, func() { safe.Close(ctx, "repository", repo) })

	llm, err := p.gemini.Configure(ctx)
	if err != nil {
		pl.Close()
		return nil, err
	}

	embedder, closeEmbedder, err := p.embedding.Configure(ctx, llm, pl.metrics)
	if err != nil {
		pl.Close()
		return nil, goerr.Wrap(err, "failed to configure embedder")
	}
	pl.closers = append(pl.closers, closeEmbedder)

	retrievalOpts, err := p.retrieval.Options()
	if err != nil {
		pl.Close()
		return nil, err
	}

	opts := []usecase.Option{
		usecase.WithMetrics(pl.metrics),
		usecase.WithRetrievalOptions(retrievalOpts...),
		usecase.WithChunkerOptions(p.chunking.Options()...),
		usecase.WithDefaultTopK(p.retrieval.TopK()),
	}

	orch, err := p.generation.Configure(&p.gemini, pl.metrics)
	if err != nil {
		pl.Close()
		return nil, goerr.Wrap(err, "failed to configure generation")
	}
	if orch != nil {
		pl.orchestrator = orch
		opts = append(opts, usecase.WithGenerator(orch))
	}

	uc, err := usecase.New(repo, embedder, tables, opts...)
	if err != nil {
		pl.Close()
		return nil, err
	}
	pl.uc = uc

	return pl, nil
}

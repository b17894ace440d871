package config_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/service/generation"
)

func TestEmbeddingConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("hashing backend with memory cache", func(t *testing.T) {
		emb, closer, err := config.NewEmbeddingForTest(config.EmbeddingBackendHashing, 32, 16).Configure(ctx, nil, nil)
		gt.NoError(t, err).Required()
		defer closer()

		gt.Value(t, emb.Dimension()).Equal(32)
		_, ok := emb.(*embedding.Cached)
		gt.Bool(t, ok).True()

		first, err := emb.Embed(ctx, "requests from Jane Doe")
		gt.NoError(t, err).Required()
		second, err := emb.Embed(ctx, "requests from Jane Doe")
		gt.NoError(t, err).Required()
		gt.Value(t, second).Equal(first)
	})

	t.Run("without caches", func(t *testing.T) {
		emb, closer, err := config.NewEmbeddingForTest(config.EmbeddingBackendHashing, 32, 0).Configure(ctx, nil, nil)
		gt.NoError(t, err).Required()
		defer closer()

		_, ok := emb.(*embedding.Retrying)
		gt.Bool(t, ok).True()
	})

	t.Run("gemini backend requires a client", func(t *testing.T) {
		_, _, err := config.NewEmbeddingForTest(config.EmbeddingBackendGemini, model.EmbeddingDimension, 0).Configure(ctx, nil, nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid backend and dimension", func(t *testing.T) {
		_, _, err := config.NewEmbeddingForTest("word2vec", 32, 0).Configure(ctx, nil, nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, _, err = config.NewEmbeddingForTest(config.EmbeddingBackendHashing, 0, 0).Configure(ctx, nil, nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestRetrievalOptions(t *testing.T) {
	opts, err := config.NewRetrievalForTest(3, 0.5, 0.4).Options()
	gt.NoError(t, err).Required()
	gt.Array(t, opts).Length(3)

	_, err = config.NewRetrievalForTest(0, 0.5, 0.4).Options()
	gt.Error(t, err).Is(config.ErrInvalidConfig)

	_, err = config.NewRetrievalForTest(3, 1.5, 0.4).Options()
	gt.Error(t, err).Is(config.ErrInvalidConfig)
}

func TestGenerationConfigure(t *testing.T) {
	gemini := config.NewGeminiForTest("test-project", "us-central1", "")

	t.Run("builds an unloaded orchestrator", func(t *testing.T) {
		orch, err := config.NewGenerationForTest(256, 0.2, 2).Configure(gemini, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, orch).NotNil()
		gt.Value(t, orch.State()).Equal(generation.StateUnloaded)
	})

	t.Run("disabled", func(t *testing.T) {
		var cfg config.Generation
		orch, err := cfg.Configure(gemini, nil)
		gt.NoError(t, err)
		gt.Value(t, orch).Nil()
	})

	t.Run("requires gemini", func(t *testing.T) {
		_, err := config.NewGenerationForTest(256, 0.2, 0).Configure(config.NewGeminiForTest("", "", ""), nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := config.NewGenerationForTest(0, 0.2, 0).Configure(gemini, nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, err = config.NewGenerationForTest(256, 3, 0).Configure(gemini, nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, err = config.NewGenerationForTest(256, 0.2, -1).Configure(gemini, nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestRepositoryConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest(config.BackendMemory, "", "").Configure(ctx)
		gt.NoError(t, err).Required()
		_, ok := repo.(*memory.Memory)
		gt.Bool(t, ok).True()
	})

	t.Run("missing settings", func(t *testing.T) {
		_, err := config.NewRepositoryForTest(config.BackendFirestore, "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, err = config.NewRepositoryForTest(config.BackendPostgres, "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, err = config.NewRepositoryForTest("sqlite", "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

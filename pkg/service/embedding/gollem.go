package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Gollem embeds text with the embedding endpoint of an LLM client
type Gollem struct {
	client    gollem.LLMClient
	dimension int
}

var _ interfaces.Embedder = &Gollem{}

// NewGollem creates an embedder calling client. dimension <= 0 selects
// model.EmbeddingDimension.
func NewGollem(client gollem.LLMClient, dimension int) (*Gollem, error) {
	if client == nil {
		return nil, goerr.New("LLM client is required")
	}
	if dimension <= 0 {
		dimension = model.EmbeddingDimension
	}
	return &Gollem{client: client, dimension: dimension}, nil
}

func (g *Gollem) Dimension() int {
	return g.dimension
}

func (g *Gollem) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gollem) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings, err := g.client.GenerateEmbedding(ctx, g.dimension, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding", goerr.V("count", len(texts)))
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.New("embedding count does not match input",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(embeddings)))
	}

	// Convert float64 to float32
	result := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) != g.dimension {
			return nil, goerr.Wrap(model.ErrDimensionMismatch, "embedding has unexpected dimension",
				goerr.V("index", i),
				goerr.V("expected", g.dimension),
				goerr.V("actual", len(emb)))
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		result[i] = vec
	}
	return result, nil
}

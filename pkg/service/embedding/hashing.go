package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Hashing is a deterministic feature-hashing embedder. It needs no model and
// is meant for local development and tests: texts sharing words land close
// together, nothing more.
type Hashing struct {
	dimension int
}

var _ interfaces.Embedder = &Hashing{}

// emptyToken keeps vectors of token-less or fully cancelled text non-zero
const emptyToken = "\x00empty"

func NewHashing(dimension int) *Hashing {
	if dimension <= 0 {
		dimension = model.EmbeddingDimension
	}
	return &Hashing{dimension: dimension}
}

func (h *Hashing) Dimension() int {
	return h.dimension
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float64, h.dimension)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		tokens = []string{emptyToken}
	}
	for _, tok := range tokens {
		h.add(vec, tok, 1)
	}
	for i := 1; i < len(tokens); i++ {
		h.add(vec, tokens[i-1]+" "+tokens[i], 0.5)
	}

	norm := l2norm(vec)
	if norm == 0 {
		// signed features cancelled out; fall back to the empty-text vector
		clear(vec)
		h.add(vec, emptyToken, 1)
		norm = l2norm(vec)
	}

	out := make([]float32, h.dimension)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (h *Hashing) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func l2norm(vec []float64) float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

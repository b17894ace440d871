package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// MaxTopK caps the number of results a single request may ask for
const MaxTopK = 100

// Retriever ranks records for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (*model.SearchResult, error)
}

// ContextFormatter renders retrieval results as model context
type ContextFormatter interface {
	Format(results []*model.RetrievalResult, intent *model.QueryIntent, total model.TotalEstimate) string
}

// AnswerGenerator produces a natural-language answer grounded on context
type AnswerGenerator interface {
	Generate(ctx context.Context, contextText, question string, queryType types.QueryType) (string, error)
}

// AnswerOption controls how Answer uses generation
type AnswerOption struct {
	// UseGeneration asks for a generated answer in addition to results
	UseGeneration bool

	// FallbackToRetrieval returns the retrieval results instead of failing
	// when generation fails. The failure is reported in the result.
	FallbackToRetrieval bool
}

// SearchUseCase answers caller queries over the indexed records
type SearchUseCase struct {
	retriever   Retriever
	formatter   ContextFormatter
	generator   AnswerGenerator
	defaultTopK int
}

type SearchOption func(*SearchUseCase)

func WithSearchDefaultTopK(n int) SearchOption {
	return func(uc *SearchUseCase) {
		uc.defaultTopK = n
	}
}

// NewSearchUseCase creates a SearchUseCase. generator may be nil, in which
// case only retrieval is available.
func NewSearchUseCase(retriever Retriever, formatter ContextFormatter, generator AnswerGenerator, opts ...SearchOption) *SearchUseCase {
	uc := &SearchUseCase{
		retriever:   retriever,
		formatter:   formatter,
		generator:   generator,
		defaultTopK: 10,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// GenerationEnabled reports whether Answer can generate text
func (uc *SearchUseCase) GenerationEnabled() bool {
	return uc.generator != nil
}

// Search returns ranked results and the total estimate for query
func (uc *SearchUseCase) Search(ctx context.Context, query string, topK int) (*model.SearchResult, error) {
	result, err := uc.retriever.Retrieve(ctx, query, uc.topK(topK))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve records", goerr.V(QueryKey, query))
	}
	return result, nil
}

// Answer retrieves records for query and, when requested, generates an
// answer grounded on them
func (uc *SearchUseCase) Answer(ctx context.Context, query string, topK int, opt AnswerOption) (*model.AnswerResult, error) {
	searched, err := uc.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	result := &model.AnswerResult{
		ID:      uuid.NewString(),
		Results: searched.Results,
		Total:   searched.Total,
		Intent:  searched.Intent,
		Context: uc.formatter.Format(searched.Results, searched.Intent, searched.Total),
	}
	if !opt.UseGeneration {
		return result, nil
	}

	logger := logging.From(ctx).With("answer_id", result.ID)

	answer, err := uc.generate(ctx, result.Context, query, searched.Intent)
	if err != nil {
		if !opt.FallbackToRetrieval {
			return nil, goerr.Wrap(err, "failed to generate answer",
				goerr.V(QueryKey, query),
				goerr.V("answer_id", result.ID))
		}
		logger.Warn("answer generation failed; returning retrieval results",
			"error", err,
			"kind", model.KindOf(err))
		result.GenerationError = err
		return result, nil
	}

	result.Answer = &answer
	result.GenerationUsed = true
	logger.Debug("answer generated", "results", len(result.Results))
	return result, nil
}

func (uc *SearchUseCase) generate(ctx context.Context, contextText, query string, intent *model.QueryIntent) (string, error) {
	if uc.generator == nil {
		return "", goerr.Wrap(ErrGenerationNotEnabled, "generator is not configured",
			goerr.T(model.TagGenerationUnavailable))
	}

	queryType := types.QueryTypeFind
	if intent != nil {
		queryType = intent.QueryType.Normalize()
	}
	return uc.generator.Generate(ctx, contextText, query, queryType)
}

func (uc *SearchUseCase) topK(topK int) int {
	if topK <= 0 {
		topK = uc.defaultTopK
	}
	return min(topK, MaxTopK)
}

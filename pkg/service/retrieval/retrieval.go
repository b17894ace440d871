package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

const (
	DefaultTopK             = 10
	DefaultFetchMultiplier  = 3
	DefaultNamedThreshold   = 0.5
	DefaultGeneralThreshold = 0.4
)

// QueryParser interprets a raw query
type QueryParser interface {
	Parse(query string) *model.QueryIntent
}

// Retriever ranks records for a query by vector similarity with entity
// boosting, and estimates how many records match in total. It keeps no state
// between calls.
type Retriever struct {
	parser   QueryParser
	embedder interfaces.Embedder
	chunks   interfaces.ChunkRepository
	records  interfaces.RecordRepository

	fetchMultiplier  int
	namedThreshold   float64
	generalThreshold float64
	metrics          *metrics.Registry
}

type Option func(*Retriever)

// WithFetchMultiplier sets how many candidates per requested result are
// fetched before deduplication
func WithFetchMultiplier(n int) Option {
	return func(r *Retriever) {
		r.fetchMultiplier = n
	}
}

// WithNamedThreshold sets the similarity cutoff for person and project totals
func WithNamedThreshold(v float64) Option {
	return func(r *Retriever) {
		r.namedThreshold = v
	}
}

// WithGeneralThreshold sets the similarity cutoff for every other total
func WithGeneralThreshold(v float64) Option {
	return func(r *Retriever) {
		r.generalThreshold = v
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Retriever) {
		r.metrics = m
	}
}

func New(parser QueryParser, embedder interfaces.Embedder, repo interfaces.Repository, opts ...Option) *Retriever {
	r := &Retriever{
		parser:           parser,
		embedder:         embedder,
		chunks:           repo.Chunk(),
		records:          repo.Record(),
		fetchMultiplier:  DefaultFetchMultiplier,
		namedThreshold:   DefaultNamedThreshold,
		generalThreshold: DefaultGeneralThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetchMultiplier < 1 {
		r.fetchMultiplier = 1
	}
	return r
}

type candidate struct {
	hit        *model.ChunkHit
	similarity float64
	boost      float64
	combined   float64
}

// Retrieve returns at most topK results, one per record, ordered by combined
// score. topK <= 0 selects DefaultTopK.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (result *model.SearchResult, err error) {
	started := time.Now()
	intent := types.IntentGeneral
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(model.KindOf(err))
		}
		r.metrics.ObserveSearch(intent.String(), outcome, time.Since(started).Seconds())
	}()

	if strings.TrimSpace(query) == "" {
		return nil, model.ErrMalformedQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	qi := r.parser.Parse(query)
	intent = qi.Intent
	logger := logging.From(ctx).With("intent", qi.Intent, "query_type", qi.QueryType)

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.T(model.TagModelUnavailable))
	}

	hits, err := r.chunks.Nearest(ctx, vector, topK*r.fetchMultiplier)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query nearest chunks", goerr.T(model.TagStoreUnavailable))
	}

	result = &model.SearchResult{
		Results: []*model.RetrievalResult{},
		Intent:  qi,
		Total:   model.TotalEstimate{Threshold: r.threshold(qi.Intent)},
	}
	if len(hits) == 0 {
		logger.Debug("no candidates")
		return result, nil
	}

	fields, err := r.loadFields(ctx, hits)
	if err != nil {
		return nil, err
	}

	matcher := newEntityMatcher(qi.Entity())
	candidates := make([]*candidate, 0, len(hits))
	for _, hit := range hits {
		c := &candidate{hit: hit, similarity: max(0, hit.Similarity())}
		c.boost = matcher.boost(fields[hit.RecordID], qi.TargetFields, hit.Text)
		c.combined = c.similarity * c.boost
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.combined != b.combined {
			return a.combined > b.combined
		}
		if a.hit.RecordID != b.hit.RecordID {
			return a.hit.RecordID < b.hit.RecordID
		}
		return a.hit.Index < b.hit.Index
	})

	seen := make(map[model.RecordID]struct{}, len(candidates))
	for _, c := range candidates {
		if len(result.Results) == topK {
			break
		}
		if _, ok := seen[c.hit.RecordID]; ok {
			continue
		}
		seen[c.hit.RecordID] = struct{}{}
		result.Results = append(result.Results, &model.RetrievalResult{
			RecordID:       c.hit.RecordID,
			BestSimilarity: c.similarity,
			Boost:          c.boost,
			CombinedScore:  c.combined,
			ChunkIndex:     c.hit.Index,
			ChunkText:      c.hit.Text,
			SourceFields:   fields[c.hit.RecordID],
		})
	}

	total, err := r.estimateTotal(ctx, qi, vector)
	if err != nil {
		return nil, err
	}
	result.Total = total

	logger.Debug("retrieved",
		"candidates", len(hits),
		"results", len(result.Results),
		"total", total.Count,
		"exact", total.Exact)
	return result, nil
}

// loadFields fetches the fields of every distinct candidate record. Records
// missing from the record store contribute no fields.
func (r *Retriever) loadFields(ctx context.Context, hits []*model.ChunkHit) (map[model.RecordID]map[string]string, error) {
	fields := make(map[model.RecordID]map[string]string)
	for _, hit := range hits {
		if _, ok := fields[hit.RecordID]; ok {
			continue
		}
		record, err := r.records.GetRecord(ctx, hit.RecordID)
		if err != nil {
			if model.IsNotFound(err) {
				logging.From(ctx).Warn("chunk refers to unknown record", "record_id", hit.RecordID)
				fields[hit.RecordID] = map[string]string{}
				continue
			}
			return nil, goerr.Wrap(err, "failed to load record",
				goerr.V("record_id", hit.RecordID),
				goerr.T(model.TagStoreUnavailable))
		}
		fields[hit.RecordID] = record.Fields
	}
	return fields, nil
}

// estimateTotal counts exactly when the intent reduces to a field filter and
// falls back to a similarity-threshold count otherwise
func (r *Retriever) estimateTotal(ctx context.Context, qi *model.QueryIntent, vector []float32) (model.TotalEstimate, error) {
	if qi.Intent.IsDiscrete() && qi.Entity() != "" && qi.PrimaryField() != "" {
		filter := model.FieldFilter{
			Field: qi.PrimaryField(),
			Value: strings.ToLower(strings.TrimSpace(qi.Entity())),
		}
		count, err := r.chunks.ExactFilterCount(ctx, filter)
		if err != nil {
			return model.TotalEstimate{}, goerr.Wrap(err, "failed to count filtered records",
				goerr.V("field", filter.Field),
				goerr.T(model.TagStoreUnavailable))
		}
		return model.TotalEstimate{Count: count, Exact: true}, nil
	}

	threshold := r.threshold(qi.Intent)
	count, err := r.chunks.ThresholdCount(ctx, vector, threshold)
	if err != nil {
		return model.TotalEstimate{}, goerr.Wrap(err, "failed to count records above threshold",
			goerr.V("threshold", threshold),
			goerr.T(model.TagStoreUnavailable))
	}
	return model.TotalEstimate{Count: count, Exact: false, Threshold: threshold}, nil
}

func (r *Retriever) threshold(intent types.Intent) float64 {
	switch intent {
	case types.IntentPerson, types.IntentProject:
		return r.namedThreshold
	default:
		return r.generalThreshold
	}
}

// entityMatcher applies the boost rules for one entity
type entityMatcher struct {
	lower string
	word  *regexp.Regexp
}

func newEntityMatcher(entity string) *entityMatcher {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return &entityMatcher{}
	}
	return &entityMatcher{
		lower: strings.ToLower(entity),
		word:  regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(entity) + `(?:$|[^\p{L}\p{N}])`),
	}
}

// boost returns the first matching multiplier: entity as a whole word in a
// target field, entity anywhere in the chunk text, or neutral
func (m *entityMatcher) boost(fields map[string]string, targets []string, chunkText string) float64 {
	if m.word == nil {
		return model.BoostNone
	}
	for _, name := range targets {
		if value := fields[name]; value != "" && m.word.MatchString(value) {
			return model.BoostTargetField
		}
	}
	if strings.Contains(strings.ToLower(chunkText), m.lower) {
		return model.BoostChunkText
	}
	return model.BoostNone
}

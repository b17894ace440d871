package model

import (
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Boost multipliers applied in strict priority order (first match wins)
const (
	BoostTargetField = 2.0
	BoostChunkText   = 1.5
	BoostNone        = 1.0
)

// RetrievalResult is the best-scoring chunk of one distinct record
type RetrievalResult struct {
	RecordID       RecordID
	BestSimilarity float64
	Boost          float64
	CombinedScore  float64 // BestSimilarity * Boost, used for ranking only
	ChunkIndex     int
	ChunkText      string
	SourceFields   map[string]string
}

// TotalEstimate is the number of records matching a query. Exact is true only
// when the total came from an exact field filter; threshold counts are
// approximate and must be presented as such.
type TotalEstimate struct {
	Count     int
	Exact     bool
	Threshold float64 // similarity cutoff used when Exact is false
}

// SearchResult is the caller-facing result of a search
type SearchResult struct {
	Results []*RetrievalResult
	Total   TotalEstimate
	Intent  *QueryIntent
}

// AnswerResult is the caller-facing result of an answer request
type AnswerResult struct {
	ID              string
	Answer          *string // nil when generation was not used
	Results         []*RetrievalResult
	Total           TotalEstimate
	Intent          *QueryIntent
	Context         string // formatted context the answer was grounded on
	GenerationUsed  bool
	GenerationError error // set when generation failed and the caller opted into fallback
}

// GenerationParams are the sampling parameters handed to the language model
type GenerationParams struct {
	MaxLength     int
	Temperature   float64
	Deterministic bool
}

// Prompt is the fully rendered generation input. System and User are kept
// apart so models with a system-prompt channel can use it.
type Prompt struct {
	System    string
	User      string
	QueryType types.QueryType
}

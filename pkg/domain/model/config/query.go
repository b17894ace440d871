package config

import "github.com/secmon-lab/mnemosyne/pkg/domain/types"

// IntentPattern maps a regular expression to an intent. EntityGroup names the
// capture group holding the entity; empty means the first group if any.
type IntentPattern struct {
	Pattern      string
	Intent       types.Intent
	TargetFields []string
	Priority     int
	EntityGroup  string
}

// QueryTypePattern maps phrasing to a query type
type QueryTypePattern struct {
	Pattern   string
	QueryType types.QueryType
	Priority  int
}

// QueryRules is the static rule table used by the query understander
type QueryRules struct {
	IntentPatterns    []IntentPattern
	QueryTypePatterns []QueryTypePattern

	// PrepositionTokens are leading words removed from an extracted entity
	// ("from", "by", "של", ...).
	PrepositionTokens []string

	// LetterPrefixes are single-letter Hebrew prefixes (מ, ש, ה) glued to a
	// name. One is removed only when MinNameRunes runes remain afterwards.
	LetterPrefixes []string
	MinNameRunes   int
}

// Tables bundles every static table loaded at process start
type Tables struct {
	Fields FieldTable
	Query  QueryRules
}

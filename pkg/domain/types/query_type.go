package types

import "fmt"

// QueryType is the shape of answer a query expects
type QueryType string

const (
	QueryTypeFind      QueryType = "find"
	QueryTypeCount     QueryType = "count"
	QueryTypeSummarize QueryType = "summarize"
	QueryTypeSimilar   QueryType = "similar"
)

// AllQueryTypes returns all valid query types
func AllQueryTypes() []QueryType {
	return []QueryType{
		QueryTypeFind,
		QueryTypeCount,
		QueryTypeSummarize,
		QueryTypeSimilar,
	}
}

// IsValid checks if the query type is valid
func (q QueryType) IsValid() bool {
	switch q {
	case QueryTypeFind,
		QueryTypeCount,
		QueryTypeSummarize,
		QueryTypeSimilar:
		return true
	default:
		return false
	}
}

// Normalize returns the query type, treating empty as QueryTypeFind
func (q QueryType) Normalize() QueryType {
	if q == "" {
		return QueryTypeFind
	}
	return q
}

// String returns the string representation of the query type
func (q QueryType) String() string {
	return string(q)
}

// ParseQueryType parses a string into a QueryType
func ParseQueryType(s string) (QueryType, error) {
	qt := QueryType(s)
	if !qt.IsValid() {
		return "", fmt.Errorf("invalid query type: %s", s)
	}
	return qt, nil
}

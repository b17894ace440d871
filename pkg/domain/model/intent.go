package model

import (
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// QueryIntent is the rule-based interpretation of a query. It is created per
// query and never persisted.
type QueryIntent struct {
	Intent       types.Intent
	Entities     map[string]string
	TargetFields []string
	QueryType    types.QueryType
}

// Entity returns the primary extracted entity, keyed by the intent name
func (q *QueryIntent) Entity() string {
	if q == nil || q.Entities == nil {
		return ""
	}
	return q.Entities[q.Intent.String()]
}

// PrimaryField returns the first target field, or "" for none
func (q *QueryIntent) PrimaryField() string {
	if q == nil || len(q.TargetFields) == 0 {
		return ""
	}
	return q.TargetFields[0]
}

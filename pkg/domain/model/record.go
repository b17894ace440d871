package model

import (
	"sort"
	"strings"
)

// RecordID identifies a request record in the external record store
type RecordID string

// String returns the string representation of the record ID
func (id RecordID) String() string {
	return string(id)
}

// Record is a semi-structured business request. Fields holds the rendered
// value of each attribute keyed by field name; absent and empty values are
// equivalent. Records are owned by the record store and read-only at query time.
type Record struct {
	ID     RecordID
	Fields map[string]string
}

// Field returns the trimmed value of name, or "" when absent
func (r *Record) Field(name string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return strings.TrimSpace(r.Fields[name])
}

// FieldNames returns field names in lexical order
func (r *Record) FieldNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	copied := &Record{
		ID:     r.ID,
		Fields: make(map[string]string, len(r.Fields)),
	}
	for k, v := range r.Fields {
		copied.Fields[k] = v
	}
	return copied
}

// FieldFilter is an exact-match predicate over a single record field
type FieldFilter struct {
	Field string
	Value string
}

// Matches reports whether value satisfies the filter
func (f FieldFilter) Matches(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(f.Value))
}

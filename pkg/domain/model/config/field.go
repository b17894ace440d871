package config

import "github.com/secmon-lab/mnemosyne/pkg/domain/types"

// FieldDefinition describes how one record attribute is rendered into
// weighted text
type FieldDefinition struct {
	Name       string
	Label      string
	Weight     types.WeightClass
	Kind       types.FieldKind
	Filterable bool // copied into chunk metadata for exact filter counts
}

// Searchable reports whether the field contributes to weighted text
func (f FieldDefinition) Searchable() bool {
	return f.Weight != types.WeightClassExclude
}

// FieldTable is the ordered, immutable field-to-weight mapping. Order is the
// declared order and is significant for reproducible weighted text.
type FieldTable struct {
	Fields []FieldDefinition
}

// Lookup returns the definition of name
func (t *FieldTable) Lookup(name string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// SearchableFields returns names of every non-excluded field in declared order
func (t *FieldTable) SearchableFields() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Searchable() {
			names = append(names, f.Name)
		}
	}
	return names
}

// FilterableFields returns names of every filterable field in declared order
func (t *FieldTable) FilterableFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Filterable {
			names = append(names, f.Name)
		}
	}
	return names
}

// Label returns the display label of name, falling back to the name itself
func (t *FieldTable) Label(name string) string {
	if f, ok := t.Lookup(name); ok && f.Label != "" {
		return f.Label
	}
	return name
}

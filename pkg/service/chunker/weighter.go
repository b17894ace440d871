package chunker

import (
	"sort"
	"strings"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Delimiter separates rendered fields in weighted text
const Delimiter = " | "

type segment struct {
	text   string
	repeat int
}

// orderedFields returns searchable fields sorted by weight descending,
// keeping declared order within a class
func orderedFields(table *config.FieldTable) []config.FieldDefinition {
	fields := make([]config.FieldDefinition, 0, len(table.Fields))
	for _, f := range table.Fields {
		if f.Searchable() && f.Weight.IsValid() {
			fields = append(fields, f)
		}
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Weight.Weight() > fields[j].Weight.Weight()
	})
	return fields
}

func renderValue(f config.FieldDefinition, raw string) string {
	value := strings.Join(strings.Fields(raw), " ")
	if value == "" {
		return ""
	}
	if f.Weight == types.WeightClassHalf && f.Kind.Normalize().IsFalsy(value) {
		return ""
	}
	return value
}

// WeightedText renders record into its weighted text. Round 0 emits every
// non-empty field once, heaviest first; round r re-emits fields whose repeat
// count exceeds r, in the same order.
func WeightedText(table *config.FieldTable, record *model.Record) string {
	if table == nil || record == nil {
		return ""
	}

	var segments []segment
	maxRepeat := 0
	for _, f := range orderedFields(table) {
		value := renderValue(f, record.Field(f.Name))
		if value == "" {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		seg := segment{text: label + ": " + value, repeat: f.Weight.Repeat()}
		segments = append(segments, seg)
		if seg.repeat > maxRepeat {
			maxRepeat = seg.repeat
		}
	}

	parts := make([]string, 0, len(segments)*maxRepeat)
	for round := 0; round < maxRepeat; round++ {
		for _, seg := range segments {
			if seg.repeat > round {
				parts = append(parts, seg.text)
			}
		}
	}
	return strings.Join(parts, Delimiter)
}

// Metadata extracts filterable field values, normalized for exact matching
func Metadata(table *config.FieldTable, record *model.Record) map[string]string {
	if table == nil || record == nil {
		return nil
	}
	meta := make(map[string]string)
	for _, name := range table.FilterableFields() {
		value := strings.ToLower(record.Field(name))
		if value != "" {
			meta[name] = value
		}
	}
	return meta
}

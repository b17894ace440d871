package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// DefaultMaxValueRunes bounds a single rendered field value
const DefaultMaxValueRunes = 300

// Fields every block leads with when present
var (
	projectFields = []string{"project_name", "project_description"}
	detailFields  = []string{"remarks"}
)

// Formatter renders retrieval results into generation context. Output size
// is bounded by the number of results and DefaultMaxValueRunes.
type Formatter struct {
	table         *config.FieldTable
	maxValueRunes int
}

type Option func(*Formatter)

func WithMaxValueRunes(n int) Option {
	return func(f *Formatter) {
		f.maxValueRunes = n
	}
}

func New(table *config.FieldTable, opts ...Option) *Formatter {
	f := &Formatter{table: table, maxValueRunes: DefaultMaxValueRunes}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders results for the query type of intent
func (f *Formatter) Format(results []*model.RetrievalResult, intent *model.QueryIntent, total model.TotalEstimate) string {
	var sb strings.Builder
	writeTotal(&sb, total)

	if len(results) == 0 {
		sb.WriteString("No matching records were found.\n")
		return sb.String()
	}

	queryType := types.QueryTypeFind
	if intent != nil {
		queryType = intent.QueryType.Normalize()
	}

	switch queryType {
	case types.QueryTypeCount:
		f.formatCount(&sb, results, intent)
	case types.QueryTypeSummarize:
		f.formatSummary(&sb, results, intent)
	default:
		f.formatBlocks(&sb, results, intent)
	}
	return sb.String()
}

func writeTotal(sb *strings.Builder, total model.TotalEstimate) {
	if total.Exact {
		fmt.Fprintf(sb, "Total matching records: %d (exact)\n\n", total.Count)
		return
	}
	fmt.Fprintf(sb, "Total matching records: approximately %d (similarity >= %.2f)\n\n", total.Count, total.Threshold)
}

// formatCount writes a short enumerated list of key fields
func (f *Formatter) formatCount(sb *strings.Builder, results []*model.RetrievalResult, intent *model.QueryIntent) {
	keys := f.keyFields(intent, projectFields[:1])
	for i, r := range results {
		pairs := make([]string, 0, len(keys))
		for _, name := range keys {
			if v := f.value(r, name); v != "" {
				pairs = append(pairs, name+"="+v)
			}
		}
		fmt.Fprintf(sb, "Record %d: %s\n", i+1, strings.Join(pairs, ", "))
	}
}

// formatBlocks writes one block per record: project, description, remarks,
// then the fields the query targets
func (f *Formatter) formatBlocks(sb *strings.Builder, results []*model.RetrievalResult, intent *model.QueryIntent) {
	lead := append(append([]string{}, projectFields...), detailFields...)
	keys := f.keyFields(intent, lead)

	for i, r := range results {
		fmt.Fprintf(sb, "[Record %d] ID: %s\n", i+1, r.RecordID)
		for _, name := range keys {
			if v := f.value(r, name); v != "" {
				fmt.Fprintf(sb, "%s: %s\n", f.table.Label(name), v)
			}
		}
		sb.WriteString("\n")
	}
}

// formatSummary aggregates repeated values of filterable fields, then lists
// each record on one line
func (f *Formatter) formatSummary(sb *strings.Builder, results []*model.RetrievalResult, intent *model.QueryIntent) {
	for _, name := range f.table.FilterableFields() {
		counts := map[string]int{}
		for _, r := range results {
			if v := f.value(r, name); v != "" {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			continue
		}
		fmt.Fprintf(sb, "%s: %s\n", f.table.Label(name), joinCounts(counts))
	}
	sb.WriteString("\nRecords:\n")

	keys := f.keyFields(intent, projectFields[:1])
	for _, r := range results {
		values := make([]string, 0, len(keys))
		for _, name := range keys {
			if v := f.value(r, name); v != "" {
				values = append(values, v)
			}
		}
		fmt.Fprintf(sb, "- %s: %s\n", r.RecordID, strings.Join(values, " | "))
	}
}

// keyFields returns lead followed by the intent's target fields (for
// non-general intents) and the filterable fields, without duplicates
func (f *Formatter) keyFields(intent *model.QueryIntent, lead []string) []string {
	var keys []string
	seen := map[string]bool{}
	add := func(names ...string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				keys = append(keys, n)
			}
		}
	}

	add(lead...)
	if intent != nil && intent.Intent != types.IntentGeneral {
		add(intent.TargetFields...)
	}
	add(f.table.FilterableFields()...)
	return keys
}

func (f *Formatter) value(r *model.RetrievalResult, name string) string {
	v := strings.Join(strings.Fields(r.SourceFields[name]), " ")
	runes := []rune(v)
	if f.maxValueRunes > 0 && len(runes) > f.maxValueRunes {
		return string(runes[:f.maxValueRunes]) + "..."
	}
	return v
}

// joinCounts renders "value (n)" pairs, most frequent first
func joinCounts(counts map[string]int) string {
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%s (%d)", v, counts[v])
	}
	return strings.Join(parts, ", ")
}

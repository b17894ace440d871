package query

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// DefaultMinNameRunes is the shortest name left after removing a letter prefix
const DefaultMinNameRunes = 3

type intentRule struct {
	re          *regexp.Regexp
	intent      types.Intent
	targets     []string
	priority    int
	entityGroup int // capture group index, 0 for none
}

type queryTypeRule struct {
	re        *regexp.Regexp
	queryType types.QueryType
	priority  int
}

// Understander classifies queries with a fixed, ordered rule table. It holds
// no mutable state and is safe for concurrent use.
type Understander struct {
	intents        []intentRule
	queryTypes     []queryTypeRule
	prepositions   map[string]struct{}
	letterPrefixes []string
	minNameRunes   int
	searchable     []string
}

// New compiles rules. Patterns are matched case-insensitively.
func New(rules *config.QueryRules, fields *config.FieldTable) (*Understander, error) {
	if rules == nil || fields == nil {
		return nil, goerr.New("query rules and field table are required")
	}

	u := &Understander{
		prepositions:   make(map[string]struct{}, len(rules.PrepositionTokens)),
		letterPrefixes: rules.LetterPrefixes,
		minNameRunes:   rules.MinNameRunes,
		searchable:     fields.SearchableFields(),
	}
	if u.minNameRunes <= 0 {
		u.minNameRunes = DefaultMinNameRunes
	}
	for _, tok := range rules.PrepositionTokens {
		u.prepositions[strings.ToLower(tok)] = struct{}{}
	}

	for i, p := range rules.IntentPatterns {
		if !p.Intent.IsValid() {
			return nil, goerr.New("unknown intent in pattern table", goerr.V("index", i), goerr.V("intent", p.Intent))
		}
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid intent pattern", goerr.V("index", i), goerr.V("pattern", p.Pattern))
		}
		for _, f := range p.TargetFields {
			if _, ok := fields.Lookup(f); !ok {
				return nil, goerr.New("intent pattern targets unknown field", goerr.V("index", i), goerr.V("field", f))
			}
		}

		group := 0
		switch {
		case p.EntityGroup != "":
			group = re.SubexpIndex(p.EntityGroup)
			if group < 0 {
				return nil, goerr.New("entity group not found in pattern",
					goerr.V("index", i),
					goerr.V("group", p.EntityGroup))
			}
		case re.NumSubexp() > 0:
			group = 1
		}

		u.intents = append(u.intents, intentRule{
			re:          re,
			intent:      p.Intent,
			targets:     p.TargetFields,
			priority:    p.Priority,
			entityGroup: group,
		})
	}

	for i, p := range rules.QueryTypePatterns {
		if !p.QueryType.IsValid() {
			return nil, goerr.New("unknown query type in pattern table", goerr.V("index", i), goerr.V("query_type", p.QueryType))
		}
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid query type pattern", goerr.V("index", i), goerr.V("pattern", p.Pattern))
		}
		u.queryTypes = append(u.queryTypes, queryTypeRule{re: re, queryType: p.QueryType, priority: p.Priority})
	}

	return u, nil
}

// Parse interprets query. The highest-priority matching intent pattern wins;
// among equal priorities the earliest declared wins. Without a match the
// intent is general and every searchable field is targeted.
func (u *Understander) Parse(query string) *model.QueryIntent {
	q := strings.Join(strings.Fields(query), " ")

	result := &model.QueryIntent{
		Intent:       types.IntentGeneral,
		Entities:     map[string]string{},
		TargetFields: u.searchable,
		QueryType:    u.queryType(q),
	}

	var (
		best  *intentRule
		match []string
	)
	for i := range u.intents {
		rule := &u.intents[i]
		if best != nil && rule.priority <= best.priority {
			continue
		}
		if m := rule.re.FindStringSubmatch(q); m != nil {
			best, match = rule, m
		}
	}
	if best == nil {
		return result
	}

	result.Intent = best.intent
	if len(best.targets) > 0 {
		result.TargetFields = best.targets
	}
	if best.entityGroup > 0 && best.entityGroup < len(match) {
		if entity := u.cleanEntity(match[best.entityGroup], best.intent); entity != "" {
			result.Entities[best.intent.String()] = entity
		}
	}
	return result
}

func (u *Understander) queryType(q string) types.QueryType {
	var best *queryTypeRule
	for i := range u.queryTypes {
		rule := &u.queryTypes[i]
		if best != nil && rule.priority <= best.priority {
			continue
		}
		if rule.re.MatchString(q) {
			best = rule
		}
	}
	if best == nil {
		return types.QueryTypeFind
	}
	return best.queryType
}

func (u *Understander) cleanEntity(raw string, intent types.Intent) string {
	tokens := strings.Fields(strings.TrimFunc(raw, isTrimmable))
	for len(tokens) > 0 {
		if _, ok := u.prepositions[strings.ToLower(tokens[0])]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return ""
	}

	if intent == types.IntentPerson {
		tokens[0] = u.stripLetterPrefix(tokens[0])
	}
	return strings.TrimFunc(strings.Join(tokens, " "), isTrimmable)
}

// stripLetterPrefix removes one single-letter prefix glued to a name, but only
// when the name keeps at least minNameRunes runes
func (u *Understander) stripLetterPrefix(word string) string {
	for _, prefix := range u.letterPrefixes {
		if !strings.HasPrefix(word, prefix) {
			continue
		}
		rest := strings.TrimPrefix(word, prefix)
		if utf8.RuneCountInString(rest) >= u.minNameRunes {
			return rest
		}
		return word
	}
	return word
}

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

package config

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

//go:embed default_tables.toml
var defaultTables []byte

// TableConfig is the TOML representation of the static field and query tables
type TableConfig struct {
	Entity     EntityRules      `toml:"entity"`
	Fields     []FieldEntry     `toml:"field"`
	Intents    []IntentEntry    `toml:"intent"`
	QueryTypes []QueryTypeEntry `toml:"query_type"`
}

// EntityRules configures entity clean-up after a pattern matched
type EntityRules struct {
	Prepositions   []string `toml:"prepositions"`
	LetterPrefixes []string `toml:"letter_prefixes"`
	MinNameRunes   int      `toml:"min_name_runes"`
}

// FieldEntry represents one record attribute
type FieldEntry struct {
	Name       string `toml:"name"`
	Label      string `toml:"label"`
	Weight     string `toml:"weight"`
	Kind       string `toml:"kind"`
	Filterable bool   `toml:"filterable"`
}

// Validate checks if the FieldEntry is valid
func (f *FieldEntry) Validate() error {
	if f.Name == "" {
		return goerr.Wrap(ErrMissingName, "field name is required")
	}
	if _, err := types.ParseWeightClass(f.Weight); err != nil {
		return goerr.Wrap(ErrInvalidWeight, err.Error(), goerr.V(FieldNameKey, f.Name))
	}
	if _, err := types.ParseFieldKind(f.Kind); err != nil {
		return goerr.Wrap(ErrInvalidFieldType, err.Error(), goerr.V(FieldNameKey, f.Name))
	}
	return nil
}

// IntentEntry represents one intent pattern
type IntentEntry struct {
	Pattern     string   `toml:"pattern"`
	Intent      string   `toml:"intent"`
	Targets     []string `toml:"targets"`
	Priority    int      `toml:"priority"`
	EntityGroup string   `toml:"entity_group"`
}

// Validate checks if the IntentEntry is valid against the declared fields
func (i *IntentEntry) Validate(fields map[string]bool) error {
	if _, err := types.ParseIntent(i.Intent); err != nil {
		return goerr.Wrap(ErrInvalidIntent, err.Error(), goerr.V(PatternKey, i.Pattern))
	}
	re, err := regexp.Compile(i.Pattern)
	if err != nil {
		return goerr.Wrap(ErrInvalidPattern, err.Error(), goerr.V(PatternKey, i.Pattern))
	}
	if i.EntityGroup != "" && re.SubexpIndex(i.EntityGroup) < 0 {
		return goerr.Wrap(ErrInvalidPattern, "entity group not declared in pattern",
			goerr.V(PatternKey, i.Pattern),
			goerr.V("entity_group", i.EntityGroup))
	}
	for _, target := range i.Targets {
		if !fields[target] {
			return goerr.Wrap(ErrUnknownField, "intent targets an undeclared field",
				goerr.V(PatternKey, i.Pattern),
				goerr.V(FieldNameKey, target))
		}
	}
	return nil
}

// QueryTypeEntry represents one query-type pattern
type QueryTypeEntry struct {
	Pattern  string `toml:"pattern"`
	Type     string `toml:"type"`
	Priority int    `toml:"priority"`
}

// Validate checks if the QueryTypeEntry is valid
func (q *QueryTypeEntry) Validate() error {
	if _, err := types.ParseQueryType(q.Type); err != nil {
		return goerr.Wrap(ErrInvalidQueryType, err.Error(), goerr.V(PatternKey, q.Pattern))
	}
	if _, err := regexp.Compile(q.Pattern); err != nil {
		return goerr.Wrap(ErrInvalidPattern, err.Error(), goerr.V(PatternKey, q.Pattern))
	}
	return nil
}

// Validate checks if the TableConfig is valid
func (c *TableConfig) Validate() error {
	if len(c.Fields) == 0 {
		return goerr.Wrap(ErrInvalidTable, "at least one field is required")
	}

	fields := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if err := f.Validate(); err != nil {
			return goerr.Wrap(err, "invalid field")
		}
		if fields[f.Name] {
			return goerr.Wrap(ErrDuplicateField, "duplicate field name", goerr.V(FieldNameKey, f.Name))
		}
		fields[f.Name] = true
	}

	for _, i := range c.Intents {
		if err := i.Validate(fields); err != nil {
			return goerr.Wrap(err, "invalid intent pattern")
		}
	}

	for _, q := range c.QueryTypes {
		if err := q.Validate(); err != nil {
			return goerr.Wrap(err, "invalid query type pattern")
		}
	}

	if c.Entity.MinNameRunes < 0 {
		return goerr.Wrap(ErrInvalidTable, "min_name_runes must not be negative")
	}

	return nil
}

// ParseTables decodes and validates TOML table data
func ParseTables(data []byte) (*TableConfig, error) {
	var cfg TableConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(ErrInvalidTable, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "table validation failed")
	}
	return &cfg, nil
}

// DefaultTables returns the built-in tables
func DefaultTables() *domainConfig.Tables {
	cfg, err := ParseTables(defaultTables)
	if err != nil {
		panic("built-in tables are invalid: " + err.Error())
	}
	return cfg.ToDomainTables()
}

// ToDomainTables converts TableConfig to the domain representation
func (c *TableConfig) ToDomainTables() *domainConfig.Tables {
	fields := make([]domainConfig.FieldDefinition, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = domainConfig.FieldDefinition{
			Name:       f.Name,
			Label:      f.Label,
			Weight:     types.WeightClass(f.Weight),
			Kind:       types.FieldKind(f.Kind).Normalize(),
			Filterable: f.Filterable,
		}
	}

	intents := make([]domainConfig.IntentPattern, len(c.Intents))
	for i, p := range c.Intents {
		intents[i] = domainConfig.IntentPattern{
			Pattern:      p.Pattern,
			Intent:       types.Intent(p.Intent),
			TargetFields: p.Targets,
			Priority:     p.Priority,
			EntityGroup:  p.EntityGroup,
		}
	}

	queryTypes := make([]domainConfig.QueryTypePattern, len(c.QueryTypes))
	for i, p := range c.QueryTypes {
		queryTypes[i] = domainConfig.QueryTypePattern{
			Pattern:   p.Pattern,
			QueryType: types.QueryType(p.Type),
			Priority:  p.Priority,
		}
	}

	return &domainConfig.Tables{
		Fields: domainConfig.FieldTable{Fields: fields},
		Query: domainConfig.QueryRules{
			IntentPatterns:    intents,
			QueryTypePatterns: queryTypes,
			PrepositionTokens: c.Entity.Prepositions,
			LetterPrefixes:    c.Entity.LetterPrefixes,
			MinNameRunes:      c.Entity.MinNameRunes,
		},
	}
}

// Tables holds the CLI flag selecting an override table file
type Tables struct {
	path string
}

// Flags returns CLI flags for table configuration
func (t *Tables) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tables",
			Usage:       "Field/query table TOML file (local path or gs://bucket/object); built-in tables when empty",
			Sources:     cli.EnvVars("MNEMOSYNE_TABLES"),
			Destination: &t.path,
		},
	}
}

// LogAttrs returns log attributes for the table configuration
func (t *Tables) LogAttrs() []slog.Attr {
	source := t.path
	if source == "" {
		source = "built-in"
	}
	return []slog.Attr{slog.String("tables", source)}
}

// Configure loads the tables. Tables are read once at start and never reloaded.
func (t *Tables) Configure(ctx context.Context) (*domainConfig.Tables, error) {
	if t.path == "" {
		return DefaultTables(), nil
	}

	data, err := readTableSource(ctx, t.path)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseTables(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load tables", goerr.V(ConfigPathKey, t.path))
	}
	return cfg.ToDomainTables(), nil
}

func readTableSource(ctx context.Context, path string) ([]byte, error) {
	if bucket, object, ok := parseGCSPath(path); ok {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage client")
		}
		defer func() { _ = client.Close() }()

		reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			return nil, goerr.Wrap(ErrConfigNotFound, err.Error(), goerr.V(ConfigPathKey, path))
		}
		defer func() { _ = reader.Close() }()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, reader); err != nil {
			return nil, goerr.Wrap(err, "failed to read table object", goerr.V(ConfigPathKey, path))
		}
		return buf.Bytes(), nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "table file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read table file", goerr.V(ConfigPathKey, path))
	}
	return data, nil
}

// parseGCSPath splits gs://bucket/object
func parseGCSPath(path string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(path, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

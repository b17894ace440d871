package cli

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
)

func TestGetIndexConfig(t *testing.T) {
	tables := config.DefaultTables()
	cfg := getIndexConfig("dev_", 256, tables)

	gt.Array(t, cfg.Collections).Length(1).Required()
	col := cfg.Collections[0]
	gt.Value(t, col.Name).Equal("dev_request_chunks")

	filterable := tables.Fields.FilterableFields()
	gt.Array(t, col.Indexes).Length(1 + len(filterable)).Required()

	vector := col.Indexes[0].Fields
	gt.Array(t, vector).Length(1).Required()
	gt.Value(t, vector[0].Path).Equal("Embedding")
	gt.Value(t, vector[0].Vector).NotNil().Required()
	gt.Value(t, vector[0].Vector.Dimension).Equal(256)

	for i, field := range filterable {
		fields := col.Indexes[i+1].Fields
		gt.Array(t, fields).Length(2).Required()
		gt.Value(t, fields[0].Path).Equal("Metadata." + field)
		gt.Value(t, fields[1].Path).Equal("Index")
	}

	desc := describeIndexFields(vector)
	gt.Array(t, desc).Length(1).Required()
	gt.Value(t, desc[0]).Equal("Embedding vector(256)")
}

package chunker_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/chunker"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

func testTable() *config.FieldTable {
	return &config.FieldTable{Fields: []config.FieldDefinition{
		{Name: "request_id", Label: "Request ID", Weight: types.WeightClassExclude, Kind: types.FieldKindCode},
		{Name: "remarks", Label: "Remarks", Weight: types.WeightClassSingle, Kind: types.FieldKindText},
		{Name: "project_name", Label: "Project", Weight: types.WeightClassTriple, Kind: types.FieldKindText},
		{Name: "request_type", Label: "Type", Weight: types.WeightClassDouble, Kind: types.FieldKindCode, Filterable: true},
		{Name: "has_permit", Label: "Permit", Weight: types.WeightClassHalf, Kind: types.FieldKindBool},
		{Name: "contact", Label: "Contact", Weight: types.WeightClassTriple, Kind: types.FieldKindText},
	}}
}

func TestWeightedText(t *testing.T) {
	table := testTable()

	t.Run("fields interleave by round, heaviest first", func(t *testing.T) {
		rec := &model.Record{ID: "R-1", Fields: map[string]string{
			"request_id":   "123456",
			"remarks":      "urgent",
			"project_name": "Harbor",
			"request_type": "4",
			"contact":      "Jane Doe",
		}}

		got := chunker.WeightedText(table, rec)
		want := strings.Join([]string{
			"Project: Harbor", "Contact: Jane Doe", "Type: 4", "Remarks: urgent",
			"Project: Harbor", "Contact: Jane Doe", "Type: 4",
			"Project: Harbor", "Contact: Jane Doe",
		}, chunker.Delimiter)
		gt.Value(t, got).Equal(want)
	})

	t.Run("excluded and empty fields never appear", func(t *testing.T) {
		rec := &model.Record{ID: "R-2", Fields: map[string]string{
			"request_id": "999",
			"remarks":    "   ",
			"contact":    "Bob",
		}}

		got := chunker.WeightedText(table, rec)
		gt.String(t, got).NotContains("999")
		gt.String(t, got).NotContains("Remarks")
		gt.Value(t, got).Equal("Contact: Bob | Contact: Bob | Contact: Bob")
	})

	t.Run("false-like half-weight booleans count as empty", func(t *testing.T) {
		for _, v := range []string{"false", "0", "no", "No"} {
			rec := &model.Record{ID: "R-3", Fields: map[string]string{"has_permit": v}}
			gt.Value(t, chunker.WeightedText(table, rec)).Equal("")
		}

		rec := &model.Record{ID: "R-3", Fields: map[string]string{"has_permit": "true"}}
		gt.Value(t, chunker.WeightedText(table, rec)).Equal("Permit: true")
	})

	t.Run("deterministic for the same table", func(t *testing.T) {
		rec := &model.Record{ID: "R-4", Fields: map[string]string{
			"project_name": "Harbor", "remarks": "a  b\n c", "contact": "Jane",
		}}
		first := chunker.WeightedText(table, rec)
		for i := 0; i < 5; i++ {
			gt.Value(t, chunker.WeightedText(table, rec)).Equal(first)
		}
		gt.String(t, first).Contains("Remarks: a b c")
	})
}

func TestMetadata(t *testing.T) {
	rec := &model.Record{ID: "R-1", Fields: map[string]string{
		"request_type": "  TypeA ",
		"project_name": "Harbor",
	}}
	meta := chunker.Metadata(testTable(), rec)
	gt.Value(t, meta).Equal(map[string]string{"request_type": "typea"})
}

func reconstruct(chunks []*model.Chunk, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Text)
		if i > 0 {
			runes = runes[overlap:]
		}
		sb.WriteString(string(runes))
	}
	return sb.String()
}

func TestSplit(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks reconstruct the text", func(t *testing.T) {
		c, err := chunker.New(testTable(), chunker.WithMaxChunkSize(10), chunker.WithOverlap(3), chunker.WithMaxChunks(100))
		gt.NoError(t, err).Required()

		for _, text := range []string{
			"a",
			"0123456789",
			"0123456789a",
			strings.Repeat("xyz", 37),
			"פרויקט נמל חיפה | Project: Harbor",
		} {
			chunks := c.Split(ctx, "R-1", text)
			gt.Value(t, reconstruct(chunks, 3)).Equal(text)
		}
	})

	t.Run("indexes are contiguous and offsets step by size minus overlap", func(t *testing.T) {
		c, err := chunker.New(testTable(), chunker.WithMaxChunkSize(500), chunker.WithOverlap(50))
		gt.NoError(t, err).Required()

		text := strings.Repeat("ש", 1200)
		chunks := c.Split(ctx, "R-1", text)
		gt.Array(t, chunks).Length(3).Required()
		for i, chunk := range chunks {
			gt.Value(t, chunk.Index).Equal(i)
			gt.Value(t, chunk.StartOffset).Equal(i * 450)
			gt.Value(t, chunk.RecordID).Equal(model.RecordID("R-1"))
		}
		gt.Value(t, chunks[2].EndOffset).Equal(1200)
	})

	t.Run("window reaching the end stops the loop", func(t *testing.T) {
		c, err := chunker.New(testTable(), chunker.WithMaxChunkSize(10), chunker.WithOverlap(3))
		gt.NoError(t, err).Required()

		// second window [7,17) covers the whole remainder
		chunks := c.Split(ctx, "R-1", strings.Repeat("a", 17))
		gt.Array(t, chunks).Length(2)
	})

	t.Run("empty text yields one empty chunk", func(t *testing.T) {
		c, err := chunker.New(testTable())
		gt.NoError(t, err).Required()

		chunks := c.Split(ctx, "R-1", "")
		gt.Array(t, chunks).Length(1).Required()
		gt.Value(t, chunks[0].Text).Equal("")
		gt.Value(t, chunks[0].Index).Equal(0)
	})

	t.Run("ceiling truncates and counts dropped windows", func(t *testing.T) {
		reg := metrics.New()
		c, err := chunker.New(testTable(),
			chunker.WithMaxChunkSize(10),
			chunker.WithOverlap(0),
			chunker.WithMaxChunks(2),
			chunker.WithMetrics(reg))
		gt.NoError(t, err).Required()

		chunks := c.Split(ctx, "R-1", strings.Repeat("b", 45))
		gt.Array(t, chunks).Length(2)
		gt.Value(t, chunks[1].EndOffset).Equal(20)

		families, err := reg.Gatherer().Gather()
		gt.NoError(t, err).Required()
		var truncated float64
		for _, mf := range families {
			if mf.GetName() == "mnemosyne_chunks_truncated_total" {
				truncated = mf.GetMetric()[0].GetCounter().GetValue()
			}
		}
		gt.Value(t, truncated).Equal(float64(3))
	})
}

func TestWeightAndChunk(t *testing.T) {
	c, err := chunker.New(testTable(), chunker.WithMaxChunkSize(20), chunker.WithOverlap(5))
	gt.NoError(t, err).Required()

	rec := &model.Record{ID: "R-7", Fields: map[string]string{
		"project_name": "Harbor Bridge Renovation",
		"request_type": "4",
	}}

	first := c.WeightAndChunk(context.Background(), rec)
	second := c.WeightAndChunk(context.Background(), rec)
	gt.Array(t, first).Length(len(second))
	for i := range first {
		gt.Value(t, first[i].Text).Equal(second[i].Text)
		gt.Value(t, first[i].Metadata["request_type"]).Equal("4")
	}
	gt.Value(t, reconstruct(first, 5)).Equal(chunker.WeightedText(testTable(), rec))
}

func TestNewRejectsInvalidWindow(t *testing.T) {
	_, err := chunker.New(testTable(), chunker.WithMaxChunkSize(10), chunker.WithOverlap(10))
	gt.Error(t, err)

	_, err = chunker.New(testTable(), chunker.WithMaxChunks(0))
	gt.Error(t, err)

	_, err = chunker.New(nil)
	gt.Error(t, err)
}

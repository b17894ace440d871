package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

func TestRecord(t *testing.T) {
	rec := &model.Record{ID: "R-1", Fields: map[string]string{
		"project_name": "  Harbor  ",
		"city":         "Haifa",
	}}

	gt.Value(t, rec.Field("project_name")).Equal("Harbor")
	gt.Value(t, rec.Field("missing")).Equal("")
	gt.Value(t, rec.FieldNames()).Equal([]string{"city", "project_name"})

	clone := rec.Clone()
	clone.Fields["city"] = "Tel Aviv"
	gt.Value(t, rec.Field("city")).Equal("Haifa")

	var nilRec *model.Record
	gt.Value(t, nilRec.Field("city")).Equal("")
	gt.Value(t, nilRec.Clone()).Nil()
}

func TestFieldFilterMatches(t *testing.T) {
	f := model.FieldFilter{Field: "request_status", Value: "Approved"}
	gt.Bool(t, f.Matches("approved")).True()
	gt.Bool(t, f.Matches(" APPROVED ")).True()
	gt.Bool(t, f.Matches("approved-pending")).False()
}

func TestChunk(t *testing.T) {
	hit := model.ChunkHit{Distance: 0.25}
	gt.Value(t, hit.Similarity()).Equal(0.75)

	chunks := []*model.Chunk{
		{RecordID: "R-1", Index: 0, Embedding: []float32{1, 0, 0}},
		{RecordID: "R-1", Index: 1, Embedding: []float32{1, 0}},
	}
	gt.NoError(t, model.CheckDimension(chunks[:1], 3))
	gt.Error(t, model.CheckDimension(chunks, 3)).Is(model.ErrDimensionMismatch)
}

func TestQueryIntent(t *testing.T) {
	qi := &model.QueryIntent{
		Intent:       "person",
		Entities:     map[string]string{"person": "Jane Doe"},
		TargetFields: []string{"applicant_name", "contact_name"},
	}
	gt.Value(t, qi.Entity()).Equal("Jane Doe")
	gt.Value(t, qi.PrimaryField()).Equal("applicant_name")

	var empty *model.QueryIntent
	gt.Value(t, empty.Entity()).Equal("")
	gt.Value(t, empty.PrimaryField()).Equal("")
}

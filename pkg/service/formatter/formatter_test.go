package formatter_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/formatter"
)

func testTable() *config.FieldTable {
	return &config.FieldTable{Fields: []config.FieldDefinition{
		{Name: "project_name", Label: "Project", Weight: types.WeightClassTriple},
		{Name: "project_description", Label: "Project Description", Weight: types.WeightClassTriple},
		{Name: "contact_name", Label: "Contact Person", Weight: types.WeightClassTriple},
		{Name: "request_type", Label: "Request Type", Weight: types.WeightClassDouble, Filterable: true},
		{Name: "request_status", Label: "Status", Weight: types.WeightClassDouble, Filterable: true},
		{Name: "remarks", Label: "Remarks", Weight: types.WeightClassSingle},
	}}
}

func testResults() []*model.RetrievalResult {
	return []*model.RetrievalResult{
		{RecordID: "R-1", SourceFields: map[string]string{
			"project_name": "Harbor", "project_description": "Pier renovation",
			"contact_name": "Jane Doe", "request_type": "4", "request_status": "approved",
			"remarks": "urgent",
		}},
		{RecordID: "R-2", SourceFields: map[string]string{
			"project_name": "Bridge", "contact_name": "John Roe",
			"request_type": "4", "request_status": "pending",
		}},
		{RecordID: "R-3", SourceFields: map[string]string{
			"project_name": "Park", "request_type": "7", "request_status": "approved",
		}},
	}
}

func TestFormatCount(t *testing.T) {
	f := formatter.New(testTable())
	intent := &model.QueryIntent{Intent: types.IntentType, TargetFields: []string{"request_type"}, QueryType: types.QueryTypeCount}

	out := f.Format(testResults(), intent, model.TotalEstimate{Count: 37, Exact: true})

	gt.String(t, out).Contains("Total matching records: 37 (exact)")
	gt.String(t, out).Contains("Record 1: project_name=Harbor, request_type=4, request_status=approved")
	gt.String(t, out).Contains("Record 3: project_name=Park, request_type=7")
	gt.String(t, out).NotContains("Pier renovation")
}

func TestFormatFind(t *testing.T) {
	f := formatter.New(testTable())
	intent := &model.QueryIntent{
		Intent:       types.IntentPerson,
		TargetFields: []string{"contact_name"},
		QueryType:    types.QueryTypeFind,
	}

	out := f.Format(testResults(), intent, model.TotalEstimate{Count: 12, Threshold: 0.5})

	gt.String(t, out).Contains("approximately 12 (similarity >= 0.50)")
	gt.String(t, out).Contains("[Record 1] ID: R-1\nProject: Harbor\nProject Description: Pier renovation\nRemarks: urgent\nContact Person: Jane Doe\n")
	gt.String(t, out).Contains("[Record 2] ID: R-2\nProject: Bridge\nContact Person: John Roe\n")
}

func TestFormatSummarize(t *testing.T) {
	f := formatter.New(testTable())
	intent := &model.QueryIntent{Intent: types.IntentGeneral, QueryType: types.QueryTypeSummarize}

	out := f.Format(testResults(), intent, model.TotalEstimate{Count: 3, Threshold: 0.4})

	gt.String(t, out).Contains("Request Type: 4 (2), 7 (1)")
	gt.String(t, out).Contains("Status: approved (2), pending (1)")
	gt.String(t, out).Contains("- R-2: Bridge | 4 | pending")
}

func TestFormatEmptyAndBounds(t *testing.T) {
	f := formatter.New(testTable(), formatter.WithMaxValueRunes(5))

	out := f.Format(nil, &model.QueryIntent{QueryType: types.QueryTypeFind}, model.TotalEstimate{})
	gt.String(t, out).Contains("No matching records were found.")

	long := []*model.RetrievalResult{{RecordID: "R-9", SourceFields: map[string]string{
		"project_name": strings.Repeat("א", 50),
	}}}
	out = f.Format(long, nil, model.TotalEstimate{Count: 1, Exact: true})
	gt.String(t, out).Contains("Project: אאאאא...\n")
	gt.String(t, out).NotContains(strings.Repeat("א", 6))
}

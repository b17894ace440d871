package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func TestWeightClass_Repeat(t *testing.T) {
	tests := []struct {
		name  string
		class types.WeightClass
		want  int
	}{
		{name: "triple", class: types.WeightClassTriple, want: 3},
		{name: "double", class: types.WeightClassDouble, want: 2},
		{name: "single", class: types.WeightClassSingle, want: 1},
		{name: "half is written once", class: types.WeightClassHalf, want: 1},
		{name: "excluded is never written", class: types.WeightClassExclude, want: 0},
		{name: "unknown", class: types.WeightClass("1.5"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.class.Repeat()).Equal(tt.want)
		})
	}
}

func TestParseWeightClass(t *testing.T) {
	wc, err := types.ParseWeightClass("2.0")
	gt.NoError(t, err)
	gt.Value(t, wc).Equal(types.WeightClassDouble)
	gt.Value(t, wc.Weight()).Equal(2.0)

	_, err = types.ParseWeightClass("4.0")
	gt.Error(t, err)
}

func TestIntent(t *testing.T) {
	for _, intent := range types.AllIntents() {
		parsed, err := types.ParseIntent(intent.String())
		gt.NoError(t, err)
		gt.Value(t, parsed).Equal(intent)
	}

	_, err := types.ParseIntent("location")
	gt.Error(t, err)

	gt.B(t, types.IntentType.IsDiscrete()).True()
	gt.B(t, types.IntentStatus.IsDiscrete()).True()
	gt.B(t, types.IntentPerson.IsDiscrete()).False()
	gt.B(t, types.IntentGeneral.IsDiscrete()).False()
}

func TestQueryType_Normalize(t *testing.T) {
	gt.Value(t, types.QueryType("").Normalize()).Equal(types.QueryTypeFind)
	gt.Value(t, types.QueryTypeCount.Normalize()).Equal(types.QueryTypeCount)

	_, err := types.ParseQueryType("aggregate")
	gt.Error(t, err)
}

func TestFieldKind_IsFalsy(t *testing.T) {
	tests := []struct {
		name  string
		kind  types.FieldKind
		value string
		want  bool
	}{
		{name: "bool false", kind: types.FieldKindBool, value: "false", want: true},
		{name: "bool zero", kind: types.FieldKindBool, value: " 0 ", want: true},
		{name: "bool hebrew no", kind: types.FieldKindBool, value: "לא", want: true},
		{name: "bool true", kind: types.FieldKindBool, value: "true", want: false},
		{name: "text false is just text", kind: types.FieldKindText, value: "false", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.kind.IsFalsy(tt.value)).Equal(tt.want)
		})
	}
}

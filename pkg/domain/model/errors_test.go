package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"nil", nil, ""},
		{"untagged", errors.New("boom"), model.KindUnknown},
		{"malformed sentinel", model.ErrMalformedQuery, model.KindMalformedQuery},
		{"store", goerr.New("down", goerr.T(model.TagStoreUnavailable)), model.KindStoreUnavailable},
		{"model", goerr.New("down", goerr.T(model.TagModelUnavailable)), model.KindModelUnavailable},
		{
			"generation load failure also marks model unavailable",
			goerr.New("load", goerr.T(model.TagGenerationUnavailable), goerr.T(model.TagModelUnavailable)),
			model.KindGenerationUnavailable,
		},
		{
			"timeout wins over generation unavailable",
			goerr.New("slow", goerr.T(model.TagGenerationTimeout), goerr.T(model.TagGenerationUnavailable)),
			model.KindGenerationTimeout,
		},
		{
			"tag found below untagged wraps",
			goerr.Wrap(goerr.Wrap(goerr.New("down", goerr.T(model.TagStoreUnavailable)), "middle"), "outer"),
			model.KindStoreUnavailable,
		},
		{
			"tag found below fmt wrap",
			fmt.Errorf("context: %w", goerr.New("down", goerr.T(model.TagModelUnavailable))),
			model.KindModelUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, model.KindOf(tt.err)).Equal(tt.want)
		})
	}
}

func TestIsKind(t *testing.T) {
	err := goerr.Wrap(errors.New("deadline"), "generation failed",
		goerr.T(model.TagGenerationUnavailable),
		goerr.T(model.TagModelUnavailable))

	gt.Bool(t, model.IsKind(err, model.KindGenerationUnavailable)).True()
	gt.Bool(t, model.IsKind(err, model.KindModelUnavailable)).True()
	gt.Bool(t, model.IsKind(err, model.KindStoreUnavailable)).False()
	gt.Bool(t, model.IsKind(nil, model.KindModelUnavailable)).False()
}

func TestIsNotFound(t *testing.T) {
	gt.Bool(t, model.IsNotFound(goerr.New("missing", goerr.T(model.TagNotFound)))).True()
	gt.Bool(t, model.IsNotFound(errors.New("missing"))).False()
	gt.Value(t, model.KindOf(goerr.New("missing", goerr.T(model.TagNotFound)))).Equal(model.KindUnknown)
}

package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrConfigNotFound", config.ErrConfigNotFound},
		{"ErrInvalidConfig", config.ErrInvalidConfig},
		{"ErrInvalidTable", config.ErrInvalidTable},
		{"ErrDuplicateField", config.ErrDuplicateField},
		{"ErrUnknownField", config.ErrUnknownField},
		{"ErrInvalidWeight", config.ErrInvalidWeight},
		{"ErrInvalidFieldType", config.ErrInvalidFieldType},
		{"ErrInvalidIntent", config.ErrInvalidIntent},
		{"ErrInvalidQueryType", config.ErrInvalidQueryType},
		{"ErrInvalidPattern", config.ErrInvalidPattern},
		{"ErrMissingName", config.ErrMissingName},
	}

	for _, tt := range sentinels {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := goerr.Wrap(tt.err, "validation failed", goerr.V(config.FieldNameKey, "project_name"))
			gt.Bool(t, errors.Is(wrapped, tt.err)).True()

			for _, other := range sentinels {
				if other.name != tt.name {
					gt.Bool(t, errors.Is(wrapped, other.err)).False()
				}
			}
		})
	}
}

func TestConfigErrors_ContextValues(t *testing.T) {
	err := goerr.Wrap(config.ErrInvalidPattern, "failed to compile pattern",
		goerr.V(config.PatternKey, "(unclosed"),
		goerr.V(config.ConfigPathKey, "tables.toml"))

	var ge *goerr.Error
	gt.Bool(t, errors.As(err, &ge)).True()
	gt.Value(t, ge.Values()[config.PatternKey]).Equal("(unclosed")
	gt.Value(t, ge.Values()[config.ConfigPathKey]).Equal("tables.toml")
	gt.String(t, err.Error()).Contains("failed to compile pattern")
}

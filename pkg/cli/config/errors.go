package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound   = goerr.New("configuration file not found")
	ErrInvalidConfig    = goerr.New("invalid configuration")
	ErrInvalidTable     = goerr.New("invalid table")
	ErrDuplicateField   = goerr.New("duplicate field name")
	ErrUnknownField     = goerr.New("unknown field")
	ErrInvalidWeight    = goerr.New("invalid weight class")
	ErrInvalidFieldType = goerr.New("invalid field kind")
	ErrInvalidIntent    = goerr.New("invalid intent")
	ErrInvalidQueryType = goerr.New("invalid query type")
	ErrInvalidPattern   = goerr.New("invalid pattern")
	ErrMissingName      = goerr.New("name is required")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	FieldNameKey  = "field_name"
	PatternKey    = "pattern"
)

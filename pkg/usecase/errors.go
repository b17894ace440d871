package usecase

import "errors"

// Sentinel errors for use case layer
var (
	ErrInvalidRecord        = errors.New("invalid record")
	ErrGenerationNotEnabled = errors.New("answer generation is not enabled")
)

// Context keys for error values
const (
	RecordIDKey = "record_id"
	QueryKey    = "query"
)

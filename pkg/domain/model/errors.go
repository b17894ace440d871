package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// Error kinds surfaced to callers. Errors are tagged with goerr tags so the
// original cause chain stays intact.
var (
	TagModelUnavailable      = goerr.NewTag("model_unavailable")
	TagGenerationUnavailable = goerr.NewTag("generation_unavailable")
	TagGenerationTimeout     = goerr.NewTag("generation_timeout")
	TagStoreUnavailable      = goerr.NewTag("store_unavailable")
	TagMalformedQuery        = goerr.NewTag("malformed_query")

	// TagNotFound marks a lookup of an absent record; it is not a failure kind
	TagNotFound = goerr.NewTag("not_found")
)

// ErrorKind is the coarse class of a failure, used by callers to decide
// whether to retry, degrade or fail a request
type ErrorKind string

const (
	KindUnknown               ErrorKind = "unknown"
	KindModelUnavailable      ErrorKind = "model_unavailable"
	KindGenerationUnavailable ErrorKind = "generation_unavailable"
	KindGenerationTimeout     ErrorKind = "generation_timeout"
	KindStoreUnavailable      ErrorKind = "store_unavailable"
	KindMalformedQuery        ErrorKind = "malformed_query"
)

// ErrMalformedQuery is returned for empty or whitespace-only queries
var ErrMalformedQuery = goerr.New("query text is empty", goerr.T(TagMalformedQuery))

// KindOf resolves the most specific kind tagged on err
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	switch {
	case goerr.HasTag(err, TagMalformedQuery):
		return KindMalformedQuery
	case goerr.HasTag(err, TagGenerationTimeout):
		return KindGenerationTimeout
	case goerr.HasTag(err, TagGenerationUnavailable):
		return KindGenerationUnavailable
	case goerr.HasTag(err, TagStoreUnavailable):
		return KindStoreUnavailable
	case goerr.HasTag(err, TagModelUnavailable):
		return KindModelUnavailable
	default:
		return KindUnknown
	}
}

// IsKind reports whether err carries kind
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	switch kind {
	case KindMalformedQuery:
		return goerr.HasTag(err, TagMalformedQuery)
	case KindGenerationTimeout:
		return goerr.HasTag(err, TagGenerationTimeout)
	case KindGenerationUnavailable:
		return goerr.HasTag(err, TagGenerationUnavailable)
	case KindStoreUnavailable:
		return goerr.HasTag(err, TagStoreUnavailable)
	case KindModelUnavailable:
		return goerr.HasTag(err, TagModelUnavailable)
	default:
		return false
	}
}

// IsNotFound reports whether err marks an absent record
func IsNotFound(err error) bool {
	return goerr.HasTag(err, TagNotFound)
}

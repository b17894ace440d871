package errutil

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// StatusCode maps an error to the HTTP status returned to callers
func StatusCode(err error) int {
	switch model.KindOf(err) {
	case "":
		return http.StatusOK
	case model.KindMalformedQuery:
		return http.StatusBadRequest
	case model.KindGenerationTimeout:
		return http.StatusGatewayTimeout
	case model.KindStoreUnavailable, model.KindModelUnavailable, model.KindGenerationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Handle logs err with its goerr values and stack and reports it to Sentry
// when a client is configured. It returns err unchanged.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logger := logging.From(ctx)
	kind := model.KindOf(err)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"kind", kind,
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error(), "kind", kind)
	}

	report(ctx, err, msg, kind)
	return err
}

// HandleHTTP logs err and writes a plain error response. Server-side
// failures are reported; client errors are only logged at warn level.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	status := StatusCode(err)
	if status < http.StatusInternalServerError {
		logging.From(ctx).Warn("HTTP client error", "status", status, "error", err.Error())
	} else {
		_ = Handle(ctx, err, "HTTP error")
	}

	http.Error(w, http.StatusText(status)+": "+err.Error(), status)
}

func report(ctx context.Context, err error, msg string, kind model.ErrorKind) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("kind", string(kind))
		scope.SetTag("message", msg)

		var ge *goerr.Error
		if errors.As(err, &ge) {
			values := sentry.Context{}
			for k, v := range ge.Values() {
				values[k] = v
			}
			scope.SetContext("values", values)
		}
		hub.CaptureException(err)
	})
}

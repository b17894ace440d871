package safe

import (
	"context"
	"io"

	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Close closes resource and logs a failure under name. A nil resource is a
// no-op so callers can defer it before checking a constructor's error.
func Close(ctx context.Context, name string, resource io.Closer) {
	if resource == nil {
		return
	}
	if err := resource.Close(); err != nil {
		logging.From(ctx).Warn("failed to release resource", "resource", name, "error", err)
	}
}

// Write writes data to w. Errors and short writes are logged; response
// bodies are the main caller and the client may already be gone.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	n, err := w.Write(data)
	if err != nil || n != len(data) {
		logging.From(ctx).Warn("failed to write response",
			"written", n,
			"size", len(data),
			"error", err)
	}
}

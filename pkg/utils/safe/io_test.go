package safe_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
)

type failingCloser struct {
	closed bool
}

func (c *failingCloser) Close() error {
	c.closed = true
	return errors.New("connection reset")
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func captureLogs(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.New(&buf, slog.LevelDebug, logging.FormatJSON)
	return logging.With(context.Background(), logger), &buf
}

func TestClose(t *testing.T) {
	ctx, buf := captureLogs(t)

	closer := &failingCloser{}
	safe.Close(ctx, "repository", closer)
	gt.Bool(t, closer.closed).True()

	var entry map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &entry)).Required()
	gt.Value(t, entry["resource"]).Equal("repository")
	gt.String(t, buf.String()).Contains("connection reset")

	buf.Reset()
	safe.Close(ctx, "nothing", nil)
	gt.Value(t, buf.Len()).Equal(0)
}

func TestWrite(t *testing.T) {
	ctx, buf := captureLogs(t)

	var out bytes.Buffer
	safe.Write(ctx, &out, []byte("hello"))
	gt.Value(t, out.String()).Equal("hello")
	gt.Value(t, buf.Len()).Equal(0)

	safe.Write(ctx, shortWriter{}, []byte("hello"))
	gt.String(t, buf.String()).Contains("failed to write response")
}

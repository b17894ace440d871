package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *metrics.Registry
	r.ObserveSearch("person", "ok", 0.1)
	r.IncEmbeddingRetry()
	r.ObserveEmbeddingCache("lru", true)
	r.AddChunksWritten(3)
	r.AddChunksTruncated(1)
	r.IncGenerationLoad("ok")
	r.ObserveGeneration("find", "ok", 1.2)
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := metrics.New()
	r.AddChunksWritten(4)
	r.IncGenerationLoad("ok")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	gt.NoError(t, err).Required()
	gt.String(t, string(body)).Contains("mnemosyne_chunks_written_total 4")
	gt.String(t, string(body)).Contains(`mnemosyne_generation_loads_total{outcome="ok"} 1`)
}

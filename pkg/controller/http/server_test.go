package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	httpctrl "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/metrics"
)

type mockSearch struct {
	searchFn func(ctx context.Context, query string, topK int) (*model.SearchResult, error)
	answerFn func(ctx context.Context, query string, topK int, opt usecase.AnswerOption) (*model.AnswerResult, error)
}

func (m *mockSearch) Search(ctx context.Context, query string, topK int) (*model.SearchResult, error) {
	return m.searchFn(ctx, query, topK)
}

func (m *mockSearch) Answer(ctx context.Context, query string, topK int, opt usecase.AnswerOption) (*model.AnswerResult, error) {
	return m.answerFn(ctx, query, topK, opt)
}

func (m *mockSearch) GenerationEnabled() bool {
	return m.answerFn != nil
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSearchHandler(t *testing.T) {
	t.Run("returns results", func(t *testing.T) {
		var gotQuery string
		var gotTopK int
		srv := httpctrl.New(&mockSearch{searchFn: func(ctx context.Context, query string, topK int) (*model.SearchResult, error) {
			gotQuery, gotTopK = query, topK
			return &model.SearchResult{
				Results: []*model.RetrievalResult{{
					RecordID:       "REQ-1",
					BestSimilarity: 0.8,
					Boost:          model.BoostTargetField,
					CombinedScore:  1.6,
					ChunkText:      "Jane Doe | Garden",
				}},
				Total:  model.TotalEstimate{Count: 4, Threshold: 0.5},
				Intent: &model.QueryIntent{Intent: types.IntentPerson, QueryType: types.QueryTypeFind},
			}, nil
		}})

		w := post(t, srv, "/api/search", `{"query":"requests from Jane Doe","top_k":3}`)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, gotQuery).Equal("requests from Jane Doe")
		gt.Value(t, gotTopK).Equal(3)

		var resp struct {
			Results []struct {
				RecordID string  `json:"record_id"`
				Boost    float64 `json:"boost"`
			} `json:"results"`
			Total struct {
				Count     int      `json:"count"`
				Exact     bool     `json:"exact"`
				Threshold *float64 `json:"threshold"`
			} `json:"total"`
			Intent struct {
				Intent string `json:"intent"`
			} `json:"intent"`
		}
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Array(t, resp.Results).Length(1)
		gt.Value(t, resp.Results[0].RecordID).Equal("REQ-1")
		gt.Value(t, resp.Results[0].Boost).Equal(2.0)
		gt.Value(t, resp.Total.Count).Equal(4)
		gt.Bool(t, resp.Total.Exact).False()
		gt.Value(t, *resp.Total.Threshold).Equal(0.5)
		gt.Value(t, resp.Intent.Intent).Equal("person")
	})

	t.Run("maps error kinds to status codes", func(t *testing.T) {
		testCases := []struct {
			name string
			err  error
			want int
		}{
			{name: "malformed", err: model.ErrMalformedQuery, want: http.StatusBadRequest},
			{name: "store", err: goerr.New("down", goerr.T(model.TagStoreUnavailable)), want: http.StatusServiceUnavailable},
			{name: "model", err: goerr.New("down", goerr.T(model.TagModelUnavailable)), want: http.StatusServiceUnavailable},
			{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				srv := httpctrl.New(&mockSearch{searchFn: func(ctx context.Context, query string, topK int) (*model.SearchResult, error) {
					return nil, tc.err
				}})
				w := post(t, srv, "/api/search", `{"query":"x"}`)
				gt.Value(t, w.Code).Equal(tc.want)
			})
		}
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		srv := httpctrl.New(&mockSearch{})
		gt.Value(t, post(t, srv, "/api/search", `{"query":`).Code).Equal(http.StatusBadRequest)
		gt.Value(t, post(t, srv, "/api/search", `{"q":"x"}`).Code).Equal(http.StatusBadRequest)
	})
}

func TestAnswerHandler(t *testing.T) {
	t.Run("generated answer", func(t *testing.T) {
		answer := "Jane Doe submitted one request."
		var gotOpt usecase.AnswerOption
		srv := httpctrl.New(&mockSearch{answerFn: func(ctx context.Context, query string, topK int, opt usecase.AnswerOption) (*model.AnswerResult, error) {
			gotOpt = opt
			return &model.AnswerResult{
				ID:             "ans-1",
				Answer:         &answer,
				GenerationUsed: true,
				Total:          model.TotalEstimate{Count: 1, Exact: true},
			}, nil
		}})

		w := post(t, srv, "/api/answer", `{"query":"q","use_generation":true,"fallback_to_retrieval":true}`)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Bool(t, gotOpt.UseGeneration).True()
		gt.Bool(t, gotOpt.FallbackToRetrieval).True()

		var resp map[string]any
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp["id"]).Equal("ans-1")
		gt.Value(t, resp["answer"]).Equal(answer)
		gt.Value(t, resp["generation_used"]).Equal(true)
		total := resp["total"].(map[string]any)
		gt.Value(t, total["exact"]).Equal(true)
		_, hasThreshold := total["threshold"]
		gt.Bool(t, hasThreshold).False()
	})

	t.Run("fallback reports the generation error kind", func(t *testing.T) {
		srv := httpctrl.New(&mockSearch{answerFn: func(ctx context.Context, query string, topK int, opt usecase.AnswerOption) (*model.AnswerResult, error) {
			return &model.AnswerResult{
				ID:              "ans-2",
				GenerationError: goerr.New("slow", goerr.T(model.TagGenerationTimeout)),
			}, nil
		}})

		w := post(t, srv, "/api/answer", `{"query":"q","use_generation":true,"fallback_to_retrieval":true}`)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		var resp map[string]any
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp["answer"]).Nil()
		gt.Value(t, resp["generation_error"]).Equal("generation_timeout")
	})

	t.Run("generation timeout", func(t *testing.T) {
		srv := httpctrl.New(&mockSearch{answerFn: func(ctx context.Context, query string, topK int, opt usecase.AnswerOption) (*model.AnswerResult, error) {
			return nil, goerr.New("slow", goerr.T(model.TagGenerationTimeout))
		}})
		gt.Value(t, post(t, srv, "/api/answer", `{"query":"q","use_generation":true}`).Code).Equal(http.StatusGatewayTimeout)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	reg := metrics.New()
	reg.ObserveSearch("person", "ok", 0.01)

	srv := httpctrl.New(&mockSearch{},
		httpctrl.WithMetrics(reg.Handler()),
		httpctrl.WithGenerationState(func() string { return "ready" }))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.String(t, w.Body.String()).Contains(`"status":"ok"`)
	gt.String(t, w.Body.String()).Contains(`"model_state":"ready"`)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.String(t, w.Body.String()).Contains("mnemosyne_search_total")
}

func TestRecoverer(t *testing.T) {
	srv := httpctrl.New(&mockSearch{searchFn: func(ctx context.Context, query string, topK int) (*model.SearchResult, error) {
		panic("unexpected")
	}})
	gt.Value(t, post(t, srv, "/api/search", `{"query":"q"}`).Code).Equal(http.StatusInternalServerError)
}

func TestServerEndToEnd(t *testing.T) {
	ctx := context.Background()
	uc, err := usecase.New(memory.New(), embedding.NewHashing(128), config.DefaultTables())
	gt.NoError(t, err).Required()

	_, err = uc.Ingest.IngestBatch(ctx, []*model.Record{
		{ID: "REQ-A", Fields: map[string]string{"project_name": "Community garden", "applicant_name": "Jane Doe", "request_type": "4"}},
		{ID: "REQ-B", Fields: map[string]string{"project_name": "Parking lot", "applicant_name": "Avi Cohen", "request_type": "4"}},
	})
	gt.NoError(t, err).Required()

	srv := httpctrl.New(uc.Search)

	w := post(t, srv, "/api/search", `{"query":"how many requests of type 4"}`)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.String(t, w.Body.String()).Contains(`"count":2`)
	gt.String(t, w.Body.String()).Contains(`"exact":true`)

	w = post(t, srv, "/api/search", `{"query":"   "}`)
	gt.Value(t, w.Code).Equal(http.StatusBadRequest)

	w = post(t, srv, "/api/answer", `{"query":"requests from Jane Doe","use_generation":true}`)
	gt.Value(t, w.Code).Equal(http.StatusServiceUnavailable)
}

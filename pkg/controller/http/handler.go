package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
)

const maxRequestBytes = 1 << 20

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type answerRequest struct {
	Query               string `json:"query"`
	TopK                int    `json:"top_k"`
	UseGeneration       bool   `json:"use_generation"`
	FallbackToRetrieval bool   `json:"fallback_to_retrieval"`
}

type resultResponse struct {
	RecordID   string            `json:"record_id"`
	Similarity float64           `json:"similarity"`
	Boost      float64           `json:"boost"`
	Score      float64           `json:"score"`
	ChunkIndex int               `json:"chunk_index"`
	ChunkText  string            `json:"chunk_text"`
	Fields     map[string]string `json:"fields,omitempty"`
}

type totalResponse struct {
	Count     int      `json:"count"`
	Exact     bool     `json:"exact"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type intentResponse struct {
	Intent       string            `json:"intent"`
	Entities     map[string]string `json:"entities,omitempty"`
	TargetFields []string          `json:"target_fields,omitempty"`
	QueryType    string            `json:"query_type"`
}

type searchResponse struct {
	Results []resultResponse `json:"results"`
	Total   totalResponse    `json:"total"`
	Intent  *intentResponse  `json:"intent,omitempty"`
}

type answerResponse struct {
	ID              string  `json:"id"`
	Answer          *string `json:"answer"`
	GenerationUsed  bool    `json:"generation_used"`
	GenerationError string  `json:"generation_error,omitempty"`
	searchResponse
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"generation": s.search.GenerationEnabled(),
	}
	if s.generationState != nil {
		resp["model_state"] = s.generationState()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeRequest(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	result, err := s.search.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toSearchResponse(result.Results, result.Total, result.Intent))
}

func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeRequest(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	result, err := s.search.Answer(r.Context(), req.Query, req.TopK, usecase.AnswerOption{
		UseGeneration:       req.UseGeneration,
		FallbackToRetrieval: req.FallbackToRetrieval,
	})
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}

	resp := answerResponse{
		ID:             result.ID,
		Answer:         result.Answer,
		GenerationUsed: result.GenerationUsed,
		searchResponse: toSearchResponse(result.Results, result.Total, result.Intent),
	}
	if result.GenerationError != nil {
		resp.GenerationError = string(model.KindOf(result.GenerationError))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func decodeRequest(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(err, "invalid request body", goerr.T(model.TagMalformedQuery))
	}
	return nil
}

func toSearchResponse(results []*model.RetrievalResult, total model.TotalEstimate, intent *model.QueryIntent) searchResponse {
	resp := searchResponse{
		Results: make([]resultResponse, 0, len(results)),
		Total:   totalResponse{Count: total.Count, Exact: total.Exact},
	}
	if !total.Exact {
		threshold := total.Threshold
		resp.Total.Threshold = &threshold
	}
	for _, r := range results {
		resp.Results = append(resp.Results, resultResponse{
			RecordID:   r.RecordID.String(),
			Similarity: r.BestSimilarity,
			Boost:      r.Boost,
			Score:      r.CombinedScore,
			ChunkIndex: r.ChunkIndex,
			ChunkText:  r.ChunkText,
			Fields:     r.SourceFields,
		})
	}
	if intent != nil {
		resp.Intent = &intentResponse{
			Intent:       intent.Intent.String(),
			Entities:     intent.Entities,
			TargetFields: intent.TargetFields,
			QueryType:    intent.QueryType.String(),
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// SearchUseCase is the query surface served over HTTP
type SearchUseCase interface {
	Search(ctx context.Context, query string, topK int) (*model.SearchResult, error)
	Answer(ctx context.Context, query string, topK int, opt usecase.AnswerOption) (*model.AnswerResult, error)
	GenerationEnabled() bool
}

type Server struct {
	router          *chi.Mux
	search          SearchUseCase
	metrics         http.Handler
	generationState func() string
	requestTimeout  time.Duration
}

type Options func(*Server)

// WithMetrics serves handler at /metrics
func WithMetrics(handler http.Handler) Options {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithGenerationState reports the model state in /health
func WithGenerationState(state func() string) Options {
	return func(s *Server) {
		s.generationState = state
	}
}

// WithRequestTimeout bounds the handling time of API requests
func WithRequestTimeout(d time.Duration) Options {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

func New(search SearchUseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		search: search,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(recoverer)

	r.Get("/health", s.healthHandler)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if s.requestTimeout > 0 {
			r.Use(middleware.Timeout(s.requestTimeout))
		}
		r.Post("/search", s.searchHandler)
		r.Post("/answer", s.answerHandler)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

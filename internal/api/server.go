// Package api exposes the engine over HTTP/JSON.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/adaptest/internal/analysis"
	"github.com/abhisek/adaptest/internal/attempt"
	"github.com/abhisek/adaptest/internal/coach"
	"github.com/abhisek/adaptest/internal/difficulty"
	"github.com/abhisek/adaptest/internal/engine"
	"github.com/abhisek/adaptest/internal/recommend"
	"github.com/abhisek/adaptest/internal/testgen"
)

// Engine is the part of engine.Service the API serves.
type Engine interface {
	GenerateTest(ctx context.Context, req engine.GenerateRequest) (*testgen.Template, error)
	SubmitAttempt(ctx context.Context, at attempt.Attempt, tmpl *testgen.Template) (*engine.Outcome, error)
	AnalyzeAttempt(ctx context.Context, attemptID string) (*analysis.Result, error)
	Recommend(ctx context.Context, attemptID string) ([]recommend.Recommendation, error)
	Levels(ctx context.Context, userID string) ([]difficulty.Level, error)
}

// Coach writes study notes for submitted attempts.
type Coach interface {
	Note(ctx context.Context, res *analysis.Result, recs []recommend.Recommendation) (*coach.Note, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigins []string

	// Coach is optional; without it submissions carry no note.
	Coach Coach

	// Ready reports whether backing services are reachable.
	Ready func(ctx context.Context) error

	// RequestTimeout bounds each request. Zero uses 30s.
	RequestTimeout time.Duration

	// Logger enables request logging when true.
	Logger bool
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP API.
type Server struct {
	engine Engine
	opts   Options
	router *chi.Mux
}

// NewServer creates a Server over eng.
func NewServer(eng Engine, opts Options) *Server {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{engine: eng, opts: opts}
	s.setupRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.opts.Logger {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tests", s.handleGenerateTest)

		r.Route("/attempts", func(r chi.Router) {
			r.Post("/", s.handleSubmitAttempt)
			r.Get("/{id}/analysis", s.handleGetAnalysis)
			r.Get("/{id}/recommendations", s.handleGetRecommendations)
		})

		r.Get("/users/{user}/levels", s.handleGetLevels)
	})

	s.router = r
}

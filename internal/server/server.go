// Package server provides the HTTP API for the triage service.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/config"
	"github.com/hyperjump/triage/internal/llm"
	"github.com/hyperjump/triage/internal/metrics"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/profile"
)

// Triager runs one emergency request.
type Triager interface {
	Run(ctx context.Context, req models.EmergencyRequest) (*models.EmergencyResponse, error)
}

// ProfileService reads and updates user profiles.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) (*profile.UpdateResult, error)
}

// IndexStatusReporter reports the guideline index cache state.
type IndexStatusReporter interface {
	Status() models.IndexStatus
}

// Deps are the collaborators behind the HTTP handlers. Transcriber and Metrics may be nil.
type Deps struct {
	Triage      Triager
	Profiles    ProfileService
	Index       IndexStatusReporter
	Transcriber llm.Transcriber
	Metrics     *metrics.Metrics
	// DataPaths are summed for the disk usage reported by the status endpoint.
	DataPaths []string
}

// Server is the HTTP server for the triage API.
type Server struct {
	deps   Deps
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	timeout := time.Duration(s.config.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: zap.NewStdLog(s.logger), NoColor: true}))
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/emergency", s.handleEmergency)
		r.Post("/profile", s.handleUpdateProfile)
		r.Get("/profile/{user_id}", s.handleGetProfile)
		r.Post("/transcribe", s.handleTranscribe)
		r.Get("/index/status", s.handleIndexStatus)
	})
	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// recoverer turns a handler panic into the uniform JSON processing failure.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panicked",
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Any("panic", rec))
				s.respondError(w, http.StatusInternalServerError, processingFailure)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// drain discards the rest of a request body.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 1<<20))
}

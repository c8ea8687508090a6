// Package api serves the HTTP trigger surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/usecase"
)

// Personas is the service the handlers trigger.
type Personas interface {
	Create(ctx context.Context, req usecase.CreateRequest) (domain.Persona, error)
	List(ctx context.Context) ([]domain.Persona, error)
	Get(ctx context.Context, slug string) (domain.Persona, error)
	Content(ctx context.Context, slug string, limit, offset int) (usecase.ContentPage, error)
	Chat(ctx context.Context, slug, message, outputType string) (string, domain.Persona, error)
	GenerateScript(ctx context.Context, slug string, req usecase.ScriptRequest) (string, domain.Persona, error)
	Reanalyze(ctx context.Context, slug string) (domain.Persona, error)
	Refresh(ctx context.Context, slug string) (domain.Persona, error)
	Delete(ctx context.Context, slug string) error
}

// Schedule exposes the refresh scheduler state.
type Schedule interface {
	Running() bool
	Spec() string
	Jobs() []domain.ScheduledJob
}

// Server wraps an http.Server around the handlers.
type Server struct {
	bind     string
	logger   *slog.Logger
	personas Personas
	schedule Schedule
	apiKey   string

	listener net.Listener
	server   *http.Server
}

// NewServer builds the server. An empty apiKey makes every /api route answer 503.
func NewServer(bind, apiKey string, personas Personas, schedule Schedule, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		bind:     bind,
		logger:   logger,
		personas: personas,
		schedule: schedule,
		apiKey:   apiKey,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/personas", s.handleCreate)
	api.HandleFunc("GET /api/personas", s.handleList)
	api.HandleFunc("GET /api/personas/{slug}", s.handleGet)
	api.HandleFunc("DELETE /api/personas/{slug}", s.handleDelete)
	api.HandleFunc("GET /api/personas/{slug}/content", s.handleContent)
	api.HandleFunc("POST /api/personas/{slug}/chat", s.handleChat)
	api.HandleFunc("POST /api/personas/{slug}/generate-script", s.handleScript)
	api.HandleFunc("POST /api/personas/{slug}/reanalyze", s.handleReanalyze)
	api.HandleFunc("POST /api/personas/{slug}/refresh", s.handleRefresh)
	api.HandleFunc("GET /api/scheduler", s.handleScheduler)
	mux.Handle("/api/", s.requireAPIKey(api))

	return s.logRequests(mux)
}

// Start listens on the bind address and serves until ctx ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if s.apiKey == "" {
		s.logger.Warn("PERSONA_API_KEY not set, rejecting all API requests")
	}
	s.logger.Info("api server listening", "address", listener.Addr().String())
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

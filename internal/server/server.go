package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/pipeline"
	"git.home.luguber.info/inful/buildtrigger/internal/runlog"
	smw "git.home.luguber.info/inful/buildtrigger/internal/server/middleware"
)

// Pipeline is the orchestrator surface the gateway needs.
type Pipeline interface {
	TriggerRun(ctx context.Context, trigger string) (pipeline.Result, error)
	Current() pipeline.Run
	Artifact() (string, error)
	Settings() pipeline.Settings
}

// LogReader reads the run log.
type LogReader interface {
	ReadAll(ctx context.Context) ([]runlog.Entry, error)
}

// Options configures the gateway.
type Options struct {
	Address string
	// MetricsHandler is mounted on /metrics when non-nil.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Server is the HTTP gateway.
type Server struct {
	router       *chi.Mux
	httpServer   *http.Server
	pipeline     Pipeline
	log          LogReader
	opts         Options
	logger       *slog.Logger
	errorAdapter *ferrors.HTTPErrorAdapter
	startTime    time.Time
	listenAddr   string
}

// New constructs the gateway and its routes.
func New(p Pipeline, log LogReader, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:       chi.NewRouter(),
		pipeline:     p,
		log:          log,
		opts:         opts,
		logger:       logger,
		errorAdapter: ferrors.NewHTTPErrorAdapter(logger),
		startTime:    time.Now(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: POST /build holds the response for the whole run.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(smw.Chain(s.logger, s.errorAdapter))

	s.router.Post("/build", s.handleBuild)
	s.router.Get("/errors", s.handleErrors)
	s.router.Get("/artifacts", s.handleArtifacts)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/healthz", s.handleHealth)
	if s.opts.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.opts.MetricsHandler)
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the bound address once Start has returned.
func (s *Server) Addr() string { return s.listenAddr }

// Start binds the listen address and serves in the background. A bind failure
// is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.opts.Address)
	if err != nil {
		return ferrors.DaemonError("http startup failed").
			WithCause(err).
			WithContext("address", s.opts.Address).
			Build()
	}
	s.listenAddr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", logfields.Error(err))
		}
	}()
	s.logger.Info("HTTP gateway started", slog.String("address", s.listenAddr))
	return nil
}

// Stop gracefully shuts down the server. Requests waiting on a run are given
// until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP gateway stopped")
	return nil
}

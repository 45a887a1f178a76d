// Package server provides the HTTP surface with lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/ingest"
	"github.com/aweiler/ragserve/internal/metrics"
	"github.com/aweiler/ragserve/internal/query"
	"github.com/aweiler/ragserve/internal/sched"
)

// Server wires the orchestrators into HTTP handlers and manages the
// listener lifecycle.
type Server struct {
	factory *engine.Factory
	core    *sched.Core
	ingest  *ingest.Orchestrator
	tasks   *ingest.TaskManager
	query   *query.Orchestrator
	metrics *metrics.Metrics
	workDir string
	started time.Time
	logger  *slog.Logger

	// lastActivity is the unix-nano timestamp of the most recent ingestion
	// or query request, reported by /health for idle monitoring.
	lastActivity atomic.Int64

	http *http.Server
}

type Config struct {
	Port    string
	Factory *engine.Factory
	Core    *sched.Core
	Ingest  *ingest.Orchestrator
	Tasks   *ingest.TaskManager
	Query   *query.Orchestrator
	Metrics *metrics.Metrics
	WorkDir string
	Logger  *slog.Logger
}

func New(cfg Config) *Server {
	s := &Server{
		factory: cfg.Factory,
		core:    cfg.Core,
		ingest:  cfg.Ingest,
		tasks:   cfg.Tasks,
		query:   cfg.Query,
		metrics: cfg.Metrics,
		workDir: cfg.WorkDir,
		started: time.Now(),
		logger:  cfg.Logger,
	}
	s.lastActivity.Store(time.Now().UnixNano())
	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           LoggingMiddleware(cfg.Logger, cfg.Metrics)(s.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed separately so tests can drive the
// mux without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("POST /process_inline", s.handleProcessInline)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /query_multimodal", s.handleQueryMultimodal)
	mux.HandleFunc("GET /analyze_efs", s.handleAnalyzeStorage)
	mux.HandleFunc("GET /get_chunks", s.handleGetChunks)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// Run starts the listener and blocks until the server is shut down.
func (s *Server) Run() error {
	s.logger.Info("starting HTTP server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Package main provides the ragserve HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aweiler/ragserve/internal/config"
	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/engine/local"
	"github.com/aweiler/ragserve/internal/extractor"
	"github.com/aweiler/ragserve/internal/ingest"
	"github.com/aweiler/ragserve/internal/llm"
	"github.com/aweiler/ragserve/internal/metrics"
	"github.com/aweiler/ragserve/internal/query"
	"github.com/aweiler/ragserve/internal/sched"
	"github.com/aweiler/ragserve/internal/server"
	"github.com/aweiler/ragserve/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting ragserve", "port", cfg.Port, "working_dir", cfg.WorkingDir)

	m := metrics.New()

	store, err := storage.NewS3Store(context.Background(), cfg.AWSRegion)
	if err != nil {
		logger.Error("failed to create object store", "error", err)
		os.Exit(1)
	}

	factory := engine.NewFactory(buildEngine(cfg, logger), logger)
	core := sched.New(logger)

	// The chunking model binds lazily so a missing credential at startup
	// only fails model-assisted ingestion tasks, not the whole process.
	chunkModel := llm.NewLazyCompleter(func() (llm.Completer, error) {
		m, err := llm.NewModel(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	}, logger)

	tasks := ingest.NewTaskManager()
	ingestor, err := ingest.NewOrchestrator(ingest.Config{
		Factory:    factory,
		Core:       core,
		Store:      store,
		Extractor:  extractor.New(chunkModel, logger),
		Tasks:      tasks,
		Workers:    cfg.IngestWorkers,
		ScratchDir: cfg.ScratchDir,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create ingestion orchestrator", "error", err)
		os.Exit(1)
	}

	querier := query.NewOrchestrator(query.Config{
		Factory:   factory,
		Core:      core,
		Timeout:   cfg.QueryTimeout,
		RecordDir: cfg.WorkingDir + "/queries",
		Metrics:   m,
		Logger:    logger,
	})

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Factory: factory,
		Core:    core,
		Ingest:  ingestor,
		Tasks:   tasks,
		Query:   querier,
		Metrics: m,
		WorkDir: cfg.WorkingDir,
		Logger:  logger,
	})

	// Construct the engine up front so the first request does not pay the
	// initialization cost. A failure here is not fatal; construction is
	// retried on first use.
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := factory.Warm(warmCtx); err != nil {
		logger.Warn("engine warm-up failed, will retry on first use", "error", err)
	}
	cancelWarm()

	go func() {
		if err := srv.Run(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := ingestor.Shutdown(ctx); err != nil {
		logger.Error("ingestion shutdown", "error", err)
	}
	if err := core.Shutdown(ctx); err != nil {
		logger.Error("scheduler shutdown", "error", err)
	}
	if err := factory.Close(); err != nil {
		logger.Error("engine close", "error", err)
	}

	logger.Info("server stopped")
}

// buildEngine returns the factory's construction function. Model bindings
// are created inside the build so a misconfigured provider surfaces as a
// retryable initialization error.
func buildEngine(cfg config.Config, logger *slog.Logger) engine.BuildFunc {
	return func(ctx context.Context) (engine.Engine, error) {
		model, err := llm.NewModel(cfg)
		if err != nil {
			return nil, err
		}
		embedder, err := llm.NewEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		var vision local.VisionModel
		if v, err := llm.NewVision(ctx, cfg); err != nil {
			logger.Warn("vision model unavailable, multimodal queries will fall back", "error", err)
		} else {
			vision = v
		}
		return local.Open(local.Config{
			WorkDir:  cfg.WorkingDir,
			TopK:     cfg.TopK,
			Model:    model,
			Embedder: embedder,
			Vision:   vision,
			Logger:   logger,
		})
	}
}

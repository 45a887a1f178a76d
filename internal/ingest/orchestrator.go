// Package ingest runs the document ingestion pipeline: download, parse,
// chunk, insert. Tasks are accepted immediately and processed on a bounded
// worker pool.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/extractor"
	"github.com/aweiler/ragserve/internal/metrics"
	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/parser"
	"github.com/aweiler/ragserve/internal/sched"
	"github.com/aweiler/ragserve/internal/storage"
	"github.com/panjf2000/ants/v2"
)

var (
	ErrValidation = errors.New("invalid ingestion request")
	ErrDownload   = errors.New("download failed")
	ErrPoolClosed = errors.New("ingestion pool is shut down")
)

// Orchestrator accepts ingestion requests and drives them through the
// pipeline stages on a bounded pool.
type Orchestrator struct {
	factory    *engine.Factory
	core       *sched.Core
	store      storage.ObjectStore
	extractor  *extractor.Extractor
	tasks      *TaskManager
	pool       *ants.Pool
	scratchDir string
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Config struct {
	Factory    *engine.Factory
	Core       *sched.Core
	Store      storage.ObjectStore
	Extractor  *extractor.Extractor
	Tasks      *TaskManager
	Workers    int
	ScratchDir string
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("create ingest pool: %w", err)
	}
	return &Orchestrator{
		factory:    cfg.Factory,
		core:       cfg.Core,
		store:      cfg.Store,
		extractor:  cfg.Extractor,
		tasks:      cfg.Tasks,
		pool:       pool,
		scratchDir: cfg.ScratchDir,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

// Submit validates the request, registers a task, and schedules it. The
// returned task is a snapshot in the accepted stage; processing happens in
// the background.
func (o *Orchestrator) Submit(bucket, key string, useLLMChunking bool) (models.Task, error) {
	if strings.TrimSpace(bucket) == "" {
		return models.Task{}, fmt.Errorf("%w: bucket is required", ErrValidation)
	}
	if strings.TrimSpace(key) == "" {
		return models.Task{}, fmt.Errorf("%w: key is required", ErrValidation)
	}

	task := o.tasks.Create(bucket, key, useLLMChunking)
	if err := o.pool.Submit(func() { o.process(task.ID, bucket, key, useLLMChunking) }); err != nil {
		o.tasks.Fail(task.ID, models.StageAccepted, err)
		return models.Task{}, fmt.Errorf("%w: %v", ErrPoolClosed, err)
	}
	o.metrics.TasksSubmitted.Inc()
	o.logger.Info("ingestion task accepted",
		"task_id", task.ID, "bucket", bucket, "key", key, "llm_chunking", useLLMChunking)
	return task, nil
}

// SubmitInline registers a task for document content supplied directly in
// the request. The content is written to scratch and flows through the same
// pipeline minus the download stage.
func (o *Orchestrator) SubmitInline(name string, content []byte, useLLMChunking bool) (models.Task, error) {
	if strings.TrimSpace(name) == "" {
		return models.Task{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(content) == 0 {
		return models.Task{}, fmt.Errorf("%w: content is empty", ErrValidation)
	}

	task := o.tasks.Create("inline", name, useLLMChunking)
	if err := o.pool.Submit(func() { o.processInline(task.ID, name, content, useLLMChunking) }); err != nil {
		o.tasks.Fail(task.ID, models.StageAccepted, err)
		return models.Task{}, fmt.Errorf("%w: %v", ErrPoolClosed, err)
	}
	o.metrics.TasksSubmitted.Inc()
	o.logger.Info("inline ingestion task accepted", "task_id", task.ID, "name", name)
	return task, nil
}

// process runs the full pipeline for one task. It uses a background context
// so an abandoned HTTP request cannot cancel a task already accepted.
func (o *Orchestrator) process(taskID, bucket, key string, useLLMChunking bool) {
	ctx := context.Background()
	start := time.Now()

	o.tasks.SetStage(taskID, models.StageDownloading)
	path, err := storage.DownloadToScratch(ctx, o.store, bucket, key, o.scratchDir)
	if err != nil {
		o.fail(taskID, models.StageDownloading, fmt.Errorf("%w: %v", ErrDownload, err))
		return
	}
	o.run(taskID, path, documentID(key), useLLMChunking, start)
}

func (o *Orchestrator) processInline(taskID, name string, content []byte, useLLMChunking bool) {
	start := time.Now()

	f, err := os.CreateTemp(o.scratchDir, "inline-*-"+filepath.Base(name))
	if err != nil {
		o.fail(taskID, models.StageDownloading, err)
		return
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		o.fail(taskID, models.StageDownloading, err)
		return
	}
	f.Close()
	o.run(taskID, f.Name(), documentID(name), useLLMChunking, start)
}

// run drives parse, extract, and insert for a document already on scratch.
// The scratch file is removed when the task finishes, in every outcome.
func (o *Orchestrator) run(taskID, path, docID string, useLLMChunking bool, start time.Time) {
	ctx := context.Background()
	defer func() {
		if err := os.Remove(path); err != nil {
			o.logger.Warn("scratch cleanup failed", "task_id", taskID, "path", path, "error", err)
		}
	}()

	eng, err := o.factory.Get(ctx)
	if err != nil {
		o.fail(taskID, models.StageParsing, err)
		return
	}

	o.tasks.SetStage(taskID, models.StageParsing)
	doc, err := sched.Do(o.core, ctx, func(ctx context.Context) (*parser.Document, error) {
		return eng.Parse(ctx, path)
	})
	if err != nil {
		o.fail(taskID, models.StageParsing, err)
		return
	}

	o.tasks.SetStage(taskID, models.StageExtracting)
	strategy := extractor.StrategyNative
	if useLLMChunking {
		strategy = extractor.StrategyModel
	}
	chunks, err := o.extractor.Extract(ctx, doc, docID, strategy)
	if err != nil {
		o.fail(taskID, models.StageExtracting, err)
		return
	}

	o.tasks.SetStage(taskID, models.StageInserting)
	_, err = sched.Do(o.core, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, eng.Insert(ctx, chunks, docID)
	})
	if err != nil {
		o.fail(taskID, models.StageInserting, err)
		return
	}

	o.tasks.Complete(taskID, len(chunks))
	o.metrics.TasksSucceeded.Inc()
	o.metrics.ChunksInserted.Add(float64(len(chunks)))
	o.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	o.logger.Info("ingestion task completed",
		"task_id", taskID, "doc_id", docID, "chunks", len(chunks), "duration", time.Since(start))
}

func (o *Orchestrator) fail(taskID string, stage models.TaskStage, err error) {
	o.tasks.Fail(taskID, stage, err)
	o.metrics.TasksFailed.WithLabelValues(string(stage)).Inc()
	o.logger.Error("ingestion task failed", "task_id", taskID, "stage", stage, "error", err)
}

// Shutdown stops accepting tasks and waits for in-flight ones to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	timeout := 30 * time.Second
	if ok {
		timeout = time.Until(deadline)
		// ReleaseTimeout rejects non-positive timeouts; an expired
		// deadline still gets one short drain attempt.
		if timeout < time.Second {
			timeout = time.Second
		}
	}
	return o.pool.ReleaseTimeout(timeout)
}

// documentID derives a stable document identifier from the storage key.
func documentID(key string) string {
	base := filepath.Base(key)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		base = "document"
	}
	return base
}

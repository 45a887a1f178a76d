// Package query validates and executes retrieval queries against the
// engine, handling multimodal fallback and response shaping.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/metrics"
	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/sched"
	"github.com/google/uuid"
)

var ErrValidation = errors.New("invalid query request")

// Orchestrator serializes queries through the scheduling core and shapes
// results for the HTTP surface.
type Orchestrator struct {
	factory   *engine.Factory
	core      *sched.Core
	timeout   time.Duration
	recordDir string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Config struct {
	Factory *engine.Factory
	Core    *sched.Core
	Timeout time.Duration
	// RecordDir, when set, receives a JSON record per answered query.
	RecordDir string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Orchestrator{
		factory:   cfg.Factory,
		core:      cfg.Core,
		timeout:   timeout,
		recordDir: cfg.RecordDir,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Execute runs one query end to end. Validation happens before any engine
// work; a multimodal query whose vision path fails is retried exactly once
// in naive text-only mode.
func (o *Orchestrator) Execute(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	start := time.Now()

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if req.Mode == "" {
		req.Mode = models.ModeHybrid
	}
	if !models.ValidMode(req.Mode) {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrValidation, req.Mode)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	eng, err := o.factory.Get(ctx)
	if err != nil {
		o.metrics.Queries.WithLabelValues(string(req.Mode), "error").Inc()
		return nil, err
	}
	setup := time.Since(start)

	mode := req.Mode
	queryStart := time.Now()
	answer, err := sched.Do(o.core, ctx, func(ctx context.Context) (*engine.Answer, error) {
		return eng.Query(ctx, req.Query, req.Mode, req.VLM)
	})
	if err != nil && req.VLM && errors.Is(err, engine.ErrVisionPath) {
		o.logger.Warn("vision path failed, retrying text-only", "error", err)
		o.metrics.QueryFallbacks.Inc()
		mode = models.ModeNaive
		answer, err = sched.Do(o.core, ctx, func(ctx context.Context) (*engine.Answer, error) {
			return eng.Query(ctx, req.Query, models.ModeNaive, false)
		})
	}
	queryDur := time.Since(queryStart)
	if err != nil {
		o.metrics.Queries.WithLabelValues(string(mode), "error").Inc()
		return nil, err
	}

	result := &models.QueryResult{
		Query:   req.Query,
		Answer:  answer.Answer,
		Sources: shapeSources(answer.Sources),
		Mode:    mode,
		Status:  "success",
		Timing: models.Timing{
			ParseDuration: setup.Seconds(),
			QueryDuration: queryDur.Seconds(),
			TotalDuration: time.Since(start).Seconds(),
		},
	}
	if len(answer.Sources) > 0 {
		c := answer.Confidence
		result.Confidence = &c
	}

	o.metrics.Queries.WithLabelValues(string(mode), "success").Inc()
	o.metrics.QueryDuration.Observe(result.Timing.TotalDuration)
	o.record(result)
	o.logger.Info("query answered",
		"mode", mode, "sources", len(result.Sources), "duration", time.Since(start))
	return result, nil
}

// shapeSources converts engine sources into the response form, normalizing
// whatever numeric vector representation the engine returns to []float64.
func shapeSources(in []engine.Source) []models.Source {
	out := make([]models.Source, len(in))
	for i, s := range in {
		out[i] = models.Source{
			DocID:     s.DocID,
			Content:   s.Content,
			Score:     s.Score,
			Embedding: normalizeVector(s.Embedding),
		}
	}
	return out
}

// normalizeVector accepts the numeric array shapes engines produce and
// returns a plain []float64. Unknown shapes normalize to nil rather than
// failing the query.
func normalizeVector(v any) []float64 {
	switch vec := v.(type) {
	case nil:
		return nil
	case []float64:
		return vec
	case []float32:
		out := make([]float64, len(vec))
		for i, f := range vec {
			out[i] = float64(f)
		}
		return out
	case []any:
		out := make([]float64, 0, len(vec))
		for _, item := range vec {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case float32:
				out = append(out, float64(n))
			case int:
				out = append(out, float64(n))
			default:
				return nil
			}
		}
		return out
	default:
		return nil
	}
}

// record persists the query and its result as a JSON file for later audit.
// Failures are logged and never surface to the caller.
func (o *Orchestrator) record(result *models.QueryResult) {
	if o.recordDir == "" {
		return
	}
	if err := os.MkdirAll(o.recordDir, 0o755); err != nil {
		o.logger.Warn("query record dir", "error", err)
		return
	}
	name := fmt.Sprintf("%s-%s.json", time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:8])
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		o.logger.Warn("query record marshal", "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(o.recordDir, name), data, 0o644); err != nil {
		o.logger.Warn("query record write", "error", err)
	}
}

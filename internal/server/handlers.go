package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/ingest"
	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/query"
	"github.com/aweiler/ragserve/internal/sched"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ingest.ErrValidation), errors.Is(err, query.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrEngineInit), errors.Is(err, ingest.ErrPoolClosed), errors.Is(err, sched.ErrShutdown):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, errorResponse{Status: "error", Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// touchActivity records that real work arrived, for idle reporting.
func (s *Server) touchActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tasks := s.tasks.List()
	active := 0
	for _, t := range tasks {
		if !t.Stage.Terminal() {
			active++
		}
	}
	last := time.Unix(0, s.lastActivity.Load())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"engine_initialized": s.factory.Initialized(),
		"uptime_seconds":     time.Since(s.started).Seconds(),
		"idle_seconds":       time.Since(last).Seconds(),
		"last_activity":      last.UTC().Format(time.RFC3339),
		"tasks_total":        len(tasks),
		"tasks_active":       active,
	})
}

type processRequest struct {
	Bucket         string `json:"bucket"`
	Key            string `json:"key"`
	UseLLMChunking bool   `json:"use_llm_chunking"`
}

type processResponse struct {
	Status         string `json:"status"`
	TaskID         string `json:"task_id"`
	Bucket         string `json:"bucket"`
	Key            string `json:"key"`
	UseLLMChunking bool   `json:"use_llm_chunking"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	s.touchActivity()
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}
	task, err := s.ingest.Submit(req.Bucket, req.Key, req.UseLLMChunking)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, processResponse{
		Status:         "accepted",
		TaskID:         task.ID,
		Bucket:         task.Bucket,
		Key:            task.Key,
		UseLLMChunking: task.UseLLMChunking,
	})
}

type processInlineRequest struct {
	// Document is either a URL to fetch or a base64 payload.
	Document       string `json:"document"`
	DocumentType   string `json:"document_type"`
	UseLLMChunking bool   `json:"use_llm_chunking"`
}

func (s *Server) handleProcessInline(w http.ResponseWriter, r *http.Request) {
	s.touchActivity()
	var req processInlineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name, content, err := resolveInlineDocument(r.Context(), req.Document, req.DocumentType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: err.Error()})
		return
	}

	task, err := s.ingest.SubmitInline(name, content, req.UseLLMChunking)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, processResponse{
		Status:         "accepted",
		TaskID:         task.ID,
		Bucket:         task.Bucket,
		Key:            task.Key,
		UseLLMChunking: task.UseLLMChunking,
	})
}

// maxInlineFetch bounds how much of a URL document is read.
const maxInlineFetch = 64 << 20

// resolveInlineDocument turns the inline intake payload into a named byte
// slice: URLs are fetched, anything else is treated as base64.
func resolveInlineDocument(ctx context.Context, document, documentType string) (string, []byte, error) {
	if strings.TrimSpace(document) == "" {
		return "", nil, errors.New("document is required")
	}
	ext := strings.TrimPrefix(documentType, ".")
	if ext == "" {
		ext = "md"
	}

	if strings.HasPrefix(document, "http://") || strings.HasPrefix(document, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, document, nil)
		if err != nil {
			return "", nil, fmt.Errorf("invalid document URL: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", nil, fmt.Errorf("fetch document: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", nil, fmt.Errorf("fetch document: %s", resp.Status)
		}
		content, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineFetch))
		if err != nil {
			return "", nil, fmt.Errorf("read document: %w", err)
		}
		name := path.Base(req.URL.Path)
		if name == "" || name == "/" || name == "." {
			name = "document." + ext
		}
		return name, content, nil
	}

	content, err := base64.StdEncoding.DecodeString(document)
	if err != nil {
		return "", nil, fmt.Errorf("document is neither a URL nor valid base64: %w", err)
	}
	return "document." + ext, content, nil
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
	VLM   bool   `json:"vlm"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, false)
}

func (s *Server) handleQueryMultimodal(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, true)
}

// serveQuery handles both query endpoints. forceVLM marks the multimodal
// endpoint; the body's vlm hint can request the vision path on either one.
func (s *Server) serveQuery(w http.ResponseWriter, r *http.Request, forceVLM bool) {
	s.touchActivity()
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.query.Execute(r.Context(), models.QueryRequest{
		Query: req.Query,
		Mode:  models.Mode(req.Mode),
		VLM:   req.VLM || forceVLM,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.tasks.List()})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.tasks.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Status: "error", Error: "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type storageEntry struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

// handleAnalyzeStorage walks the working directory and reports its layout,
// plus engine store counts when the engine is already initialized. It never
// triggers engine construction.
func (s *Server) handleAnalyzeStorage(w http.ResponseWriter, r *http.Request) {
	entries := map[string]*storageEntry{}
	totalFiles := 0
	var totalBytes int64

	err := filepath.WalkDir(s.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(s.workDir, filepath.Dir(path))
		entry, ok := entries[rel]
		if !ok {
			entry = &storageEntry{Path: rel}
			entries[rel] = entry
		}
		entry.Files++
		entry.Bytes += info.Size()
		totalFiles++
		totalBytes += info.Size()
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		writeError(w, err)
		return
	}

	dirs := make([]storageEntry, 0, len(entries))
	for _, e := range entries {
		dirs = append(dirs, *e)
	}

	resp := map[string]any{
		"root":        s.workDir,
		"total_files": totalFiles,
		"total_bytes": totalBytes,
		"directories": dirs,
	}

	if s.factory.Initialized() {
		eng, err := s.factory.Get(r.Context())
		if err == nil {
			stats, err := sched.Do(s.core, r.Context(), func(ctx context.Context) (*engine.Stats, error) {
				return eng.Stats(ctx)
			})
			if err == nil {
				resp["engine"] = stats
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	eng, err := s.factory.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	chunks, err := sched.Do(s.core, r.Context(), func(ctx context.Context) ([]models.Chunk, error) {
		return eng.SampleChunks(ctx, limit)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(chunks),
		"chunks": chunks,
	})
}

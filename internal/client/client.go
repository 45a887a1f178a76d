// Package client provides an HTTP client for the ragserve server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/aweiler/ragserve/internal/models"
)

// Client talks to a running ragserve instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given base URL.
// If baseURL is empty, uses RAGSERVE_SERVER_URL env var or defaults to
// localhost on the server's default port.
// Timeout can be configured via RAGSERVE_CLIENT_TIMEOUT env var (default 10m, queries can be slow).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("RAGSERVE_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("RAGSERVE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// errorBody mirrors the server's error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// do sends a request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, eb.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(data))
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Health describes the server's health response.
type Health struct {
	Status            string  `json:"status"`
	EngineInitialized bool    `json:"engine_initialized"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	TasksTotal        int     `json:"tasks_total"`
	TasksActive       int     `json:"tasks_active"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Accepted is the server's response to a submitted ingestion request.
type Accepted struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (c *Client) Process(ctx context.Context, bucket, key string, useLLMChunking bool) (*Accepted, error) {
	var a Accepted
	err := c.do(ctx, http.MethodPost, "/process", map[string]any{
		"bucket":           bucket,
		"key":              key,
		"use_llm_chunking": useLLMChunking,
	}, &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) Query(ctx context.Context, q, mode string, multimodal bool) (*models.QueryResult, error) {
	path := "/query"
	if multimodal {
		path = "/query_multimodal"
	}
	var res models.QueryResult
	err := c.do(ctx, http.MethodPost, path, map[string]any{
		"query": q,
		"mode":  mode,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var res struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &res); err != nil {
		return nil, err
	}
	return res.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Chunks returns a sample of stored chunks for inspection.
func (c *Client) Chunks(ctx context.Context, limit int) ([]models.Chunk, error) {
	var res struct {
		Chunks []models.Chunk `json:"chunks"`
	}
	path := fmt.Sprintf("/get_chunks?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Chunks, nil
}

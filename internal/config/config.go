// Package config loads service configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port            string
	ShutdownTimeout time.Duration

	// Engine working directory and ingestion scratch space
	WorkingDir string
	ScratchDir string

	// Completion model
	LLMProvider string // "openai" | "ollama"
	LLMModel    string
	OpenAIKey   string
	OllamaHost  string

	// Embedding model
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// Vision model (Bedrock)
	VisionModel string
	AWSRegion   string

	// Orchestration
	IngestWorkers int
	QueryTimeout  time.Duration
	TopK          int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables with defaults that
// match the deployed service.
func Load() Config {
	return Config{
		Port:            getEnv("RAGSERVE_PORT", "8000"),
		ShutdownTimeout: getDuration("RAGSERVE_SHUTDOWN_TIMEOUT", 10*time.Second),

		WorkingDir: getEnv("RAGSERVE_WORKING_DIR", "/tmp/rag_storage"),
		ScratchDir: getEnv("RAGSERVE_SCRATCH_DIR", os.TempDir()),

		LLMProvider: getEnv("RAGSERVE_LLM_PROVIDER", "openai"),
		LLMModel:    getEnv("RAGSERVE_LLM_MODEL", "gpt-4o-mini"),
		OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
		OllamaHost:  getEnv("OLLAMA_HOST", "http://localhost:11434"),

		EmbedProvider:  getEnv("RAGSERVE_EMBED_PROVIDER", "openai"),
		EmbedModel:     getEnv("RAGSERVE_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDimension: getInt("RAGSERVE_EMBED_DIMENSION", 1536),

		VisionModel: getEnv("RAGSERVE_VISION_MODEL", "anthropic.claude-3-haiku-20240307-v1:0"),
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),

		IngestWorkers: getInt("RAGSERVE_INGEST_WORKERS", 4),
		QueryTimeout:  getDuration("RAGSERVE_QUERY_TIMEOUT", 5*time.Minute),
		TopK:          getInt("RAGSERVE_TOP_K", 5),

		LogFile:  getEnv("RAGSERVE_LOG_FILE", "/tmp/ragserve.log"),
		LogLevel: parseLogLevel(getEnv("RAGSERVE_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

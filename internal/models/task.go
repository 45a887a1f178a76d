package models

import "time"

// TaskStage is the current position of an ingestion task in its pipeline.
type TaskStage string

const (
	StageAccepted    TaskStage = "accepted"
	StageDownloading TaskStage = "downloading"
	StageParsing     TaskStage = "parsing"
	StageExtracting  TaskStage = "extracting"
	StageInserting   TaskStage = "inserting"
	StageSucceeded   TaskStage = "succeeded"
	StageFailed      TaskStage = "failed"
)

// Terminal reports whether the stage is a final outcome.
func (s TaskStage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// Task tracks one document's journey through the ingestion pipeline.
// Callers receive a snapshot; the authoritative copy lives in the task
// manager and is mutated as the pipeline advances.
type Task struct {
	ID             string     `json:"task_id"`
	Bucket         string     `json:"bucket"`
	Key            string     `json:"key"`
	UseLLMChunking bool       `json:"use_llm_chunking"`
	Stage          TaskStage  `json:"stage"`
	FailedStage    TaskStage  `json:"failed_stage,omitempty"`
	Error          string     `json:"error,omitempty"`
	Chunks         int        `json:"chunks"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

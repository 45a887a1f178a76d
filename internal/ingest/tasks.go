package ingest

import (
	"sort"
	"sync"
	"time"

	"github.com/aweiler/ragserve/internal/models"
	"github.com/google/uuid"
)

// TaskManager tracks ingestion tasks in memory. Task history lives for the
// lifetime of the process.
type TaskManager struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
}

func NewTaskManager() *TaskManager {
	return &TaskManager{tasks: make(map[string]*models.Task)}
}

// Create registers a new task in the accepted stage and returns a snapshot.
func (m *TaskManager) Create(bucket, key string, useLLMChunking bool) models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := &models.Task{
		ID:             uuid.New().String(),
		Bucket:         bucket,
		Key:            key,
		UseLLMChunking: useLLMChunking,
		Stage:          models.StageAccepted,
		CreatedAt:      time.Now(),
	}
	m.tasks[task.ID] = task
	return *task
}

// Get returns a snapshot of the task, if it exists.
func (m *TaskManager) Get(id string) (models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *task, true
}

// List returns snapshots of all tasks, newest first.
func (m *TaskManager) List() []models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SetStage advances the task through the pipeline.
func (m *TaskManager) SetStage(id string, stage models.TaskStage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[id]; ok {
		task.Stage = stage
	}
}

// Fail marks the task failed, recording the stage it failed in.
func (m *TaskManager) Fail(id string, stage models.TaskStage, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return
	}
	now := time.Now()
	task.Stage = models.StageFailed
	task.FailedStage = stage
	task.Error = err.Error()
	task.CompletedAt = &now
}

// Complete marks the task succeeded with its final chunk count.
func (m *TaskManager) Complete(id string, chunks int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return
	}
	now := time.Now()
	task.Stage = models.StageSucceeded
	task.Chunks = chunks
	task.CompletedAt = &now
}

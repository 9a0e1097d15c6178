package interfaces

import (
	"context"
)

// Task is one entry in the external task list that feeds the enrichment queue
type Task struct {
	ID    string
	Title string
}

// TaskSource is the external task-list feed consumed by queue ingestion
type TaskSource interface {
	// ListTasks returns up to limit tasks, newest first
	ListTasks(ctx context.Context, listID string, limit int) ([]Task, error)

	// DeleteTask removes a task that has been ingested
	DeleteTask(ctx context.Context, listID, taskID string) error
}

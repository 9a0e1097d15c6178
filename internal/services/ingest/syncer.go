package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
)

// DefaultTaskLimit bounds how many tasks one sync pass consumes.
const DefaultTaskLimit = 20

// Syncer turns To Do tasks into enrichment queue items. Each consumed task
// is deleted from the list; a failed task is skipped and reported, not
// fatal to the pass.
type Syncer struct {
	tasks   interfaces.TaskSource
	catalog interfaces.CatalogService
	listID  string
	limit   int
	logger  arbor.ILogger
}

// NewSyncer creates a queue feed over the given task list.
func NewSyncer(tasks interfaces.TaskSource, catalog interfaces.CatalogService, listID string, logger arbor.ILogger) *Syncer {
	return &Syncer{
		tasks:   tasks,
		catalog: catalog,
		listID:  listID,
		limit:   DefaultTaskLimit,
		logger:  logger,
	}
}

// SyncOnce runs one sync pass and returns the number of queue items created.
// Per-task failures are collected into the returned error; successfully
// consumed tasks are not rolled back.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	tasks, err := s.tasks.ListTasks(ctx, s.listID, s.limit)
	if err != nil {
		return 0, fmt.Errorf("task list unavailable: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	created := 0
	var failures []error
	for _, task := range tasks {
		if task.Title == "" {
			continue
		}

		item := models.QueueItem{
			Slug:   task.Title,
			Status: models.QueueStatusNew,
		}
		if err := s.catalog.CreateQueueItem(ctx, item); err != nil {
			failures = append(failures, fmt.Errorf("task %s: %w", task.ID, err))
			continue
		}
		created++

		// The queue item now owns the request; a leftover task would only
		// produce a duplicate on the next pass.
		if err := s.tasks.DeleteTask(ctx, s.listID, task.ID); err != nil {
			failures = append(failures, fmt.Errorf("task %s: %w", task.ID, err))
		}
	}

	s.logger.Info().
		Int("tasks", len(tasks)).
		Int("created", created).
		Int("failures", len(failures)).
		Msg("Queue feed sync completed")

	return created, errors.Join(failures...)
}

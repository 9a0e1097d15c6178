// Package engine provides the durable execution substrate the orchestration
// pipelines run on. A run is a resumable state machine: every external call
// is issued through a journaled step whose result is recorded in storage, so
// a crashed run resumes from its last durably recorded step. Steps between
// record boundaries execute at least once and must tolerate repetition.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
)

// Engine executes durable runs. Steps from all active runs share one bounded
// worker pool; a single run issues its steps strictly in order.
type Engine struct {
	store  interfaces.RunStorage
	sem    chan struct{}
	logger arbor.ILogger
}

// New creates an engine with the given journal storage and step concurrency
func New(store interfaces.RunStorage, maxConcurrentSteps int, logger arbor.ILogger) *Engine {
	if maxConcurrentSteps < 1 {
		maxConcurrentSteps = 1
	}
	return &Engine{
		store:  store,
		sem:    make(chan struct{}, maxConcurrentSteps),
		logger: logger,
	}
}

// Run is the handle an orchestration function uses to issue steps. It tracks
// the issue order so that replays line up with the journal.
type Run struct {
	ID     string
	engine *Engine
	seq    int
}

func (r *Run) nextSeq() int {
	r.seq++
	return r.seq
}

// Logger returns the engine logger for orchestration-level messages
func (r *Run) Logger() arbor.ILogger {
	return r.engine.logger
}

// Execute runs fn as a durable run. Re-executing a completed run returns its
// recorded outcome without invoking fn; re-executing an interrupted run
// replays journaled steps and resumes where it left off.
func (e *Engine) Execute(ctx context.Context, runID string, fn func(ctx context.Context, run *Run) error) error {
	existing, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	if existing != nil {
		switch existing.Status {
		case models.RunStatusCompleted:
			e.logger.Debug().Str("run_id", runID).Msg("Run already completed, returning recorded outcome")
			return nil
		case models.RunStatusFailed:
			e.logger.Debug().Str("run_id", runID).Msg("Run already failed, returning recorded outcome")
			return fmt.Errorf("run %s failed: %s", runID, existing.Error)
		}
		e.logger.Info().Str("run_id", runID).Msg("Resuming interrupted run")
	} else {
		record := &models.RunRecord{
			ID:        runID,
			Status:    models.RunStatusRunning,
			StartedAt: time.Now(),
		}
		if err := e.store.SaveRun(ctx, record); err != nil {
			return fmt.Errorf("failed to journal run %s: %w", runID, err)
		}
	}

	run := &Run{ID: runID, engine: e}
	runErr := fn(ctx, run)

	if runErr != nil && ctx.Err() != nil {
		// Interrupted, not failed: the journal stays open so a later
		// Execute with the same id resumes from the last recorded step.
		e.logger.Info().Str("run_id", runID).Msg("Run interrupted, leaving journal open for resume")
		return runErr
	}

	now := time.Now()
	record := &models.RunRecord{
		ID:          runID,
		StartedAt:   now,
		CompletedAt: &now,
	}
	if existing != nil {
		record.StartedAt = existing.StartedAt
	}
	if runErr != nil {
		record.Status = models.RunStatusFailed
		record.Error = runErr.Error()
	} else {
		record.Status = models.RunStatusCompleted
	}

	if err := e.store.SaveRun(ctx, record); err != nil {
		e.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to journal run outcome")
	}

	return runErr
}

// Interrupted returns the runs whose journal is still open, i.e. runs that
// were cut short before recording an outcome. Passing each back to Execute
// resumes it from its last recorded step.
func (e *Engine) Interrupted(ctx context.Context) ([]models.RunRecord, error) {
	return e.store.ListRuns(ctx, models.RunStatusRunning)
}

// Prune removes the journal of a finished run. Child runs derive their ids
// from the parent's, so they are removed with it.
func (e *Engine) Prune(ctx context.Context, runID string) error {
	return e.store.DeleteRun(ctx, runID)
}

package badger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage implements the RunStorage interface for Badger. It journals run
// and step records for the durable engine.
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, *run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	var run models.RunRecord
	if err := s.db.Store().Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) ListRuns(ctx context.Context, status models.RunStatus) ([]models.RunRecord, error) {
	var runs []models.RunRecord
	if err := s.db.Store().Find(&runs, badgerhold.Where("Status").Eq(status).Index("Status")); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStorage) SaveStep(ctx context.Context, step *models.StepRecord) error {
	if step.Key == "" {
		return fmt.Errorf("step key is required")
	}
	if err := s.db.Store().Upsert(step.Key, *step); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

func (s *RunStorage) GetStep(ctx context.Context, key string) (*models.StepRecord, error) {
	var step models.StepRecord
	if err := s.db.Store().Get(key, &step); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return &step, nil
}

func (s *RunStorage) ListSteps(ctx context.Context, runID string) ([]models.StepRecord, error) {
	var steps []models.StepRecord
	if err := s.db.Store().Find(&steps, badgerhold.Where("RunID").Eq(runID).Index("RunID")); err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	return steps, nil
}

// DeleteRun removes the run and its steps, plus every run whose id extends
// runID with a ":" segment. Child runs derive their ids that way, so pruning
// a parent takes its children along.
func (s *RunStorage) DeleteRun(ctx context.Context, runID string) error {
	var runs []models.RunRecord
	query := badgerhold.Where("ID").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		id, ok := ra.Field().(string)
		if !ok {
			return false, nil
		}
		return id == runID || strings.HasPrefix(id, runID+":"), nil
	})
	if err := s.db.Store().Find(&runs, query); err != nil {
		return fmt.Errorf("failed to find runs to delete: %w", err)
	}

	for _, run := range runs {
		steps, err := s.ListSteps(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, step := range steps {
			if err := s.db.Store().Delete(step.Key, &models.StepRecord{}); err != nil && err != badgerhold.ErrNotFound {
				return fmt.Errorf("failed to delete step %s: %w", step.Key, err)
			}
		}
		if err := s.db.Store().Delete(run.ID, &models.RunRecord{}); err != nil && err != badgerhold.ErrNotFound {
			return fmt.Errorf("failed to delete run %s: %w", run.ID, err)
		}
	}
	return nil
}

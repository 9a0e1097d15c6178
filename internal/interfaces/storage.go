package interfaces

import (
	"context"

	"github.com/ternarybob/ditare/internal/models"
)

// RunStorage is the durable journal backing the run engine. Completed step
// results are recorded here so that a resumed run replays them instead of
// re-executing the step.
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, runID string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, status models.RunStatus) ([]models.RunRecord, error)
	SaveStep(ctx context.Context, step *models.StepRecord) error
	GetStep(ctx context.Context, key string) (*models.StepRecord, error)
	ListSteps(ctx context.Context, runID string) ([]models.StepRecord, error)

	// DeleteRun removes the run, its steps, and every run whose id is
	// prefixed by runID. Child runs derive their ids from the parent's, so
	// a parent's journal is pruned in one call.
	DeleteRun(ctx context.Context, runID string) error
}

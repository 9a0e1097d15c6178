package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/ditare/internal/models"
)

// StepOptions declares the retry budget and timeout of one external step
type StepOptions struct {
	MaxAttempts int           // Attempts before the failure propagates (default 1)
	Timeout     time.Duration // Per-attempt timeout (0 = no timeout)
	Backoff     time.Duration // Base delay between attempts, scaled by attempt number (default 2s)
}

func (o StepOptions) withDefaults() StepOptions {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
	return o
}

// StepError is the recorded failure of a step whose retry budget is exhausted
type StepError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempts: %v", e.Step, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Step executes fn as a journaled step of the run. A step result already in
// the journal is returned without re-executing fn (replay); otherwise fn runs
// on the engine's bounded worker pool with the declared retry budget, and its
// outcome is durably recorded before Step returns.
func Step[T any](ctx context.Context, run *Run, name string, opts StepOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	opts = opts.withDefaults()

	engine := run.engine
	key := models.StepKey(run.ID, run.nextSeq(), name)

	if recorded, err := engine.store.GetStep(ctx, key); err != nil {
		return zero, fmt.Errorf("failed to read step journal: %w", err)
	} else if recorded != nil {
		return replayStep[T](run, recorded)
	}

	// Bounded worker pool shared by all runs
	select {
	case engine.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-engine.sem }()

	var result T
	var attemptErr error
	attempts := 0

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		attempts++
		result, attemptErr = runAttempt(ctx, opts.Timeout, fn)
		if attemptErr == nil {
			break
		}
		if ctx.Err() != nil {
			// Interrupted, not failed: leave the journal open so a resumed
			// run retries this step from scratch.
			return zero, ctx.Err()
		}
		if attempt+1 < opts.MaxAttempts {
			backoff := time.Duration(attempt+1) * opts.Backoff
			engine.logger.Warn().
				Str("run_id", run.ID).
				Str("step", name).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(attemptErr).
				Msg("Step attempt failed, retrying")
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	record := &models.StepRecord{
		Key:         key,
		RunID:       run.ID,
		Seq:         run.seq,
		Name:        name,
		Attempts:    attempts,
		CompletedAt: time.Now(),
	}

	if attemptErr != nil {
		record.Outcome = models.StepOutcomeFailed
		record.Error = attemptErr.Error()
		if err := engine.store.SaveStep(ctx, record); err != nil {
			engine.logger.Warn().Err(err).Str("step", key).Msg("Failed to journal step failure")
		}
		return zero, &StepError{Step: name, Attempts: attempts, Err: attemptErr}
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("failed to encode result of step %s: %w", name, err)
	}
	record.Outcome = models.StepOutcomeCompleted
	record.Result = encoded
	if err := engine.store.SaveStep(ctx, record); err != nil {
		return zero, fmt.Errorf("failed to journal step %s: %w", name, err)
	}

	return result, nil
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func replayStep[T any](run *Run, recorded *models.StepRecord) (T, error) {
	var zero T
	run.engine.logger.Debug().
		Str("run_id", run.ID).
		Str("step", recorded.Name).
		Msg("Replaying journaled step result")

	if recorded.Outcome == models.StepOutcomeFailed {
		return zero, &StepError{
			Step:     recorded.Name,
			Attempts: recorded.Attempts,
			Err:      fmt.Errorf("%s", recorded.Error),
		}
	}

	var result T
	if len(recorded.Result) > 0 {
		if err := json.Unmarshal(recorded.Result, &result); err != nil {
			return zero, fmt.Errorf("failed to decode journaled result of step %s: %w", recorded.Name, err)
		}
	}
	return result, nil
}

// Sleep is a journaled delay. A resumed run that already slept skips the wait.
func Sleep(ctx context.Context, run *Run, name string, d time.Duration) error {
	_, err := Step(ctx, run, name, StepOptions{MaxAttempts: 1}, func(ctx context.Context) (struct{}, error) {
		select {
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		case <-time.After(d):
			return struct{}{}, nil
		}
	})
	return err
}

// Child invokes a nested run exactly once from the parent's point of view:
// the child's outcome is journaled as a parent step, so a replayed parent
// never re-invokes a child that already ran to a recorded outcome. Unlike
// Step, Child does not occupy a worker-pool slot; the child's own steps
// contend for the pool.
func Child(ctx context.Context, run *Run, name, childID string, fn func(ctx context.Context, child *Run) error) error {
	engine := run.engine
	key := models.StepKey(run.ID, run.nextSeq(), name)

	if recorded, err := engine.store.GetStep(ctx, key); err != nil {
		return fmt.Errorf("failed to read step journal: %w", err)
	} else if recorded != nil {
		if recorded.Outcome == models.StepOutcomeFailed {
			return &StepError{Step: name, Attempts: recorded.Attempts, Err: fmt.Errorf("%s", recorded.Error)}
		}
		return nil
	}

	childErr := engine.Execute(ctx, childID, fn)
	if ctx.Err() != nil {
		// Interrupted: leave the journal open so a resumed parent re-enters
		// the child, which replays its own journal.
		return ctx.Err()
	}

	record := &models.StepRecord{
		Key:         key,
		RunID:       run.ID,
		Seq:         run.seq,
		Name:        name,
		Attempts:    1,
		CompletedAt: time.Now(),
	}
	if childErr != nil {
		record.Outcome = models.StepOutcomeFailed
		record.Error = childErr.Error()
	} else {
		record.Outcome = models.StepOutcomeCompleted
		record.Result = []byte(fmt.Sprintf("%q", childID))
	}
	if err := engine.store.SaveStep(ctx, record); err != nil {
		engine.logger.Warn().Err(err).Str("step", key).Msg("Failed to journal child outcome")
	}

	if childErr != nil {
		return &StepError{Step: name, Attempts: 1, Err: childErr}
	}
	return nil
}

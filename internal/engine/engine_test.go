package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/ditare/internal/common"
	"github.com/ternarybob/ditare/internal/models"
)

// memoryStore is an in-memory RunStorage for engine tests
type memoryStore struct {
	mu    sync.Mutex
	runs  map[string]models.RunRecord
	steps map[string]models.StepRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		runs:  make(map[string]models.RunRecord),
		steps: make(map[string]models.StepRecord),
	}
}

func (m *memoryStore) SaveRun(_ context.Context, run *models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryStore) GetRun(_ context.Context, runID string) (*models.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		return &run, nil
	}
	return nil, nil
}

func (m *memoryStore) ListRuns(_ context.Context, status models.RunStatus) ([]models.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []models.RunRecord
	for _, run := range m.runs {
		if run.Status == status {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func (m *memoryStore) SaveStep(_ context.Context, step *models.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[step.Key] = *step
	return nil
}

func (m *memoryStore) GetStep(_ context.Context, key string) (*models.StepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if step, ok := m.steps[key]; ok {
		return &step, nil
	}
	return nil, nil
}

func (m *memoryStore) ListSteps(_ context.Context, runID string) ([]models.StepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var steps []models.StepRecord
	for _, step := range m.steps {
		if step.RunID == runID {
			steps = append(steps, step)
		}
	}
	return steps, nil
}

func (m *memoryStore) DeleteRun(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	covered := func(id string) bool {
		return id == runID || strings.HasPrefix(id, runID+":")
	}
	for id := range m.runs {
		if covered(id) {
			delete(m.runs, id)
		}
	}
	for key, step := range m.steps {
		if covered(step.RunID) {
			delete(m.steps, key)
		}
	}
	return nil
}

func newTestEngine(store *memoryStore, concurrency int) *Engine {
	return New(store, concurrency, common.GetLogger())
}

func TestEngine_StepResultJournaled(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	calls := 0
	err := eng.Execute(context.Background(), "run_1", func(ctx context.Context, run *Run) error {
		url, err := Step(ctx, run, "generate-url", StepOptions{MaxAttempts: 2, Backoff: time.Millisecond}, func(ctx context.Context) (string, error) {
			calls++
			return "https://example.com", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", url)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	step, err := store.GetStep(context.Background(), models.StepKey("run_1", 1, "generate-url"))
	require.NoError(t, err)
	require.NotNil(t, step)
	assert.Equal(t, models.StepOutcomeCompleted, step.Outcome)
}

func TestEngine_CompletedRunNotReExecuted(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	calls := 0
	fn := func(ctx context.Context, run *Run) error {
		calls++
		return nil
	}

	require.NoError(t, eng.Execute(context.Background(), "run_1", fn))
	require.NoError(t, eng.Execute(context.Background(), "run_1", fn))
	assert.Equal(t, 1, calls)
}

func TestEngine_ResumeReplaysCompletedSteps(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)
	ctx := context.Background()

	firstCalls := 0
	secondCalls := 0
	boom := errors.New("boom")

	orchestration := func(failSecond bool) func(ctx context.Context, run *Run) error {
		return func(ctx context.Context, run *Run) error {
			value, err := Step(ctx, run, "first", StepOptions{}, func(ctx context.Context) (int, error) {
				firstCalls++
				return 42, nil
			})
			if err != nil {
				return err
			}
			_, err = Step(ctx, run, "second", StepOptions{Backoff: time.Millisecond}, func(ctx context.Context) (int, error) {
				secondCalls++
				if failSecond {
					return 0, boom
				}
				return value * 2, nil
			})
			return err
		}
	}

	// Simulate a crash between "first" and "second": run the first step only,
	// then abandon the run record in "running" state.
	err := eng.Execute(ctx, "run_1", func(ctx context.Context, run *Run) error {
		_, err := Step(ctx, run, "first", StepOptions{}, func(ctx context.Context) (int, error) {
			firstCalls++
			return 42, nil
		})
		require.NoError(t, err)
		return fmt.Errorf("crash")
	})
	require.Error(t, err)

	// Reset the run status to running, as it would be after a process crash
	require.NoError(t, store.SaveRun(ctx, &models.RunRecord{ID: "run_1", Status: models.RunStatusRunning}))

	require.NoError(t, eng.Execute(ctx, "run_1", orchestration(false)))
	assert.Equal(t, 1, firstCalls, "first step replays from the journal")
	assert.Equal(t, 1, secondCalls)
}

func TestEngine_StepRetryBudget(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	calls := 0
	err := eng.Execute(context.Background(), "run_1", func(ctx context.Context, run *Run) error {
		_, err := Step(ctx, run, "flaky", StepOptions{MaxAttempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("transient")
		})
		return err
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "flaky", stepErr.Step)
	assert.Equal(t, 3, stepErr.Attempts)
}

func TestEngine_StepRecoversAfterTransientFailure(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	calls := 0
	err := eng.Execute(context.Background(), "run_1", func(ctx context.Context, run *Run) error {
		value, err := Step(ctx, run, "flaky", StepOptions{MaxAttempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", value)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestEngine_FailedStepReplaysAsFailure(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)
	ctx := context.Background()

	calls := 0
	orchestration := func(ctx context.Context, run *Run) error {
		_, err := Step(ctx, run, "doomed", StepOptions{MaxAttempts: 1}, func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("permanent")
		})
		return err
	}

	require.Error(t, eng.Execute(ctx, "run_1", orchestration))
	require.NoError(t, store.SaveRun(ctx, &models.RunRecord{ID: "run_1", Status: models.RunStatusRunning}))

	err := eng.Execute(ctx, "run_1", orchestration)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "failed step outcome replays; fn is not re-invoked")
}

func TestEngine_StepTimeout(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	err := eng.Execute(context.Background(), "run_1", func(ctx context.Context, run *Run) error {
		_, err := Step(ctx, run, "slow", StepOptions{MaxAttempts: 2, Timeout: 10 * time.Millisecond, Backoff: time.Millisecond}, func(ctx context.Context) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
				return "too late", nil
			}
		})
		return err
	})

	require.Error(t, err)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Attempts)
}

func TestEngine_ChildInvokedExactlyOnce(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)
	ctx := context.Background()

	childCalls := 0
	orchestration := func(ctx context.Context, run *Run) error {
		return Child(ctx, run, "enrich", "run_child", func(ctx context.Context, child *Run) error {
			_, err := Step(ctx, child, "work", StepOptions{}, func(ctx context.Context) (string, error) {
				childCalls++
				return "done", nil
			})
			return err
		})
	}

	require.NoError(t, eng.Execute(ctx, "run_parent", orchestration))

	// Replay the parent: the child's journaled outcome is returned without
	// re-entering the child orchestration.
	require.NoError(t, store.SaveRun(ctx, &models.RunRecord{ID: "run_parent", Status: models.RunStatusRunning}))
	require.NoError(t, eng.Execute(ctx, "run_parent", orchestration))
	assert.Equal(t, 1, childCalls)
}

func TestEngine_ChildFailurePropagates(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	err := eng.Execute(context.Background(), "run_parent", func(ctx context.Context, run *Run) error {
		return Child(ctx, run, "enrich", "run_child", func(ctx context.Context, child *Run) error {
			return errors.New("child failed")
		})
	})

	require.Error(t, err)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "enrich", stepErr.Step)
}

func TestEngine_ChildPoolNotDeadlocked(t *testing.T) {
	// A pool of one slot must still allow a child's steps to run while the
	// parent waits on the child.
	store := newMemoryStore()
	eng := newTestEngine(store, 1)

	done := make(chan error, 1)
	go func() {
		done <- eng.Execute(context.Background(), "run_parent", func(ctx context.Context, run *Run) error {
			return Child(ctx, run, "child", "run_child", func(ctx context.Context, child *Run) error {
				_, err := Step(ctx, child, "work", StepOptions{}, func(ctx context.Context) (string, error) {
					return "ok", nil
				})
				return err
			})
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("parent/child deadlocked on the worker pool")
	}
}

func TestEngine_BoundedStepConcurrency(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 2)

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		runID := fmt.Sprintf("run_%d", i)
		go func() {
			defer wg.Done()
			_ = eng.Execute(context.Background(), runID, func(ctx context.Context, run *Run) error {
				_, err := Step(ctx, run, "work", StepOptions{}, func(ctx context.Context) (string, error) {
					current := atomic.AddInt32(&inFlight, 1)
					for {
						observed := atomic.LoadInt32(&maxInFlight)
						if current <= observed || atomic.CompareAndSwapInt32(&maxInFlight, observed, current) {
							break
						}
					}
					time.Sleep(20 * time.Millisecond)
					atomic.AddInt32(&inFlight, -1)
					return "ok", nil
				})
				return err
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestEngine_InterruptedRunStaysResumable(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	firstCalls := 0
	secondCalls := 0

	ctx, cancel := context.WithCancel(context.Background())
	err := eng.Execute(ctx, "run_1", func(ctx context.Context, run *Run) error {
		_, err := Step(ctx, run, "first", StepOptions{}, func(ctx context.Context) (int, error) {
			firstCalls++
			return 1, nil
		})
		require.NoError(t, err)
		cancel()
		_, err = Step(ctx, run, "second", StepOptions{}, func(ctx context.Context) (int, error) {
			secondCalls++
			return 2, nil
		})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 0, secondCalls)

	record, err := store.GetRun(context.Background(), "run_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.RunStatusRunning, record.Status, "cancellation must not record a failure")

	interrupted, err := eng.Interrupted(context.Background())
	require.NoError(t, err)
	require.Len(t, interrupted, 1)
	assert.Equal(t, "run_1", interrupted[0].ID)

	err = eng.Execute(context.Background(), "run_1", func(ctx context.Context, run *Run) error {
		_, err := Step(ctx, run, "first", StepOptions{}, func(ctx context.Context) (int, error) {
			firstCalls++
			return 1, nil
		})
		require.NoError(t, err)
		_, err = Step(ctx, run, "second", StepOptions{}, func(ctx context.Context) (int, error) {
			secondCalls++
			return 2, nil
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, firstCalls, "completed step replays from the journal")
	assert.Equal(t, 1, secondCalls)
}

func TestEngine_InterruptedChildResumes(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)

	workCalls := 0
	tailCalls := 0

	ctx, cancel := context.WithCancel(context.Background())
	orchestration := func(interrupt bool) func(ctx context.Context, run *Run) error {
		return func(ctx context.Context, run *Run) error {
			return Child(ctx, run, "enrich", "run_1:enrich:item", func(ctx context.Context, child *Run) error {
				_, err := Step(ctx, child, "work", StepOptions{}, func(ctx context.Context) (string, error) {
					workCalls++
					return "ok", nil
				})
				require.NoError(t, err)
				if interrupt {
					cancel()
				}
				_, err = Step(ctx, child, "tail", StepOptions{}, func(ctx context.Context) (string, error) {
					tailCalls++
					return "done", nil
				})
				return err
			})
		}
	}

	require.Error(t, eng.Execute(ctx, "run_1", orchestration(true)))

	child, err := store.GetRun(context.Background(), "run_1:enrich:item")
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.Equal(t, models.RunStatusRunning, child.Status, "an interrupted child must not be recorded as failed")

	require.NoError(t, eng.Execute(context.Background(), "run_1", orchestration(false)))
	assert.Equal(t, 1, workCalls, "the child's completed step replays")
	assert.Equal(t, 1, tailCalls)
}

func TestEngine_PruneRemovesRunAndChildren(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)
	ctx := context.Background()

	require.NoError(t, eng.Execute(ctx, "run_parent", func(ctx context.Context, run *Run) error {
		return Child(ctx, run, "enrich", "run_parent:enrich:item", func(ctx context.Context, child *Run) error {
			_, err := Step(ctx, child, "work", StepOptions{}, func(ctx context.Context) (string, error) {
				return "ok", nil
			})
			return err
		})
	}))

	require.NoError(t, eng.Prune(ctx, "run_parent"))

	parent, err := store.GetRun(ctx, "run_parent")
	require.NoError(t, err)
	assert.Nil(t, parent)
	child, err := store.GetRun(ctx, "run_parent:enrich:item")
	require.NoError(t, err)
	assert.Nil(t, child)
	steps, err := store.ListSteps(ctx, "run_parent:enrich:item")
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestEngine_SleepJournaled(t *testing.T) {
	store := newMemoryStore()
	eng := newTestEngine(store, 4)
	ctx := context.Background()

	orchestration := func(ctx context.Context, run *Run) error {
		return Sleep(ctx, run, "debounce", 30*time.Millisecond)
	}

	require.NoError(t, eng.Execute(ctx, "run_1", orchestration))
	require.NoError(t, store.SaveRun(ctx, &models.RunRecord{ID: "run_1", Status: models.RunStatusRunning}))

	start := time.Now()
	require.NoError(t, eng.Execute(ctx, "run_1", orchestration))
	assert.Less(t, time.Since(start), 25*time.Millisecond, "journaled sleep is skipped on replay")
}

// Package scheduler drives the enrichment queue: a cron-triggered loop that
// processes at most one queue item per iteration.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/common"
	"github.com/ternarybob/ditare/internal/engine"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
	"github.com/ternarybob/ditare/internal/services/enrich"
)

var repoStep = engine.StepOptions{MaxAttempts: 3, Timeout: 2 * time.Minute}

// runIDPrefix marks iteration runs in the journal so recovery can tell them
// apart from one-shot runs and from child runs (whose ids contain ":").
const runIDPrefix = "schedule-"

// IterationResult reports the outcome of one scheduler iteration.
type IterationResult struct {
	Processed bool   `json:"processed"`
	ServiceID string `json:"serviceId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EnrichmentRunner runs one enrichment inside a durable run. Satisfied by
// the enrichment pipeline.
type EnrichmentRunner interface {
	Run(ctx context.Context, run *engine.Run, input enrich.Input) (*enrich.Result, error)
}

// IngestFunc pulls new queue items from an external feed.
type IngestFunc func(ctx context.Context) error

// Service owns the cron instance and executes queue iterations as durable
// runs.
type Service struct {
	catalog      interfaces.CatalogService
	engine       *engine.Engine
	enrichment   EnrichmentRunner
	ingest       IngestFunc
	allowNewTags bool
	debounce     time.Duration
	settle       time.Duration
	cron         *cron.Cron
	logger       arbor.ILogger
}

// ServiceOption configures the scheduler.
type ServiceOption func(*Service)

// WithIngest registers the queue feed sync job.
func WithIngest(ingest IngestFunc) ServiceOption {
	return func(s *Service) {
		s.ingest = ingest
	}
}

// WithAllowNewTags lets enrichment runs create proposed tags.
func WithAllowNewTags(allow bool) ServiceOption {
	return func(s *Service) {
		s.allowNewTags = allow
	}
}

// WithDelays overrides the debounce and settle delays.
func WithDelays(debounce, settle time.Duration) ServiceOption {
	return func(s *Service) {
		s.debounce = debounce
		s.settle = settle
	}
}

// NewService creates a scheduler service.
func NewService(catalog interfaces.CatalogService, eng *engine.Engine, enrichment EnrichmentRunner, cfg *common.SchedulerConfig, logger arbor.ILogger, opts ...ServiceOption) *Service {
	s := &Service{
		catalog:    catalog,
		engine:     eng,
		enrichment: enrichment,
		debounce:   cfg.DebounceDelay,
		settle:     cfg.SettleDelay,
		cron:       cron.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resumes interrupted iterations, registers the cron entries, and
// starts the scheduler.
func (s *Service) Start(ctx context.Context, schedule, ingestSchedule string) error {
	if err := s.Recover(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to recover interrupted iterations, continuing")
	}

	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunIteration(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Queue iteration failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid queue schedule %q: %w", schedule, err)
	}

	if s.ingest != nil && ingestSchedule != "" {
		_, err := s.cron.AddFunc(ingestSchedule, func() {
			if err := s.ingest(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Queue ingestion failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid ingest schedule %q: %w", ingestSchedule, err)
		}
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Str("ingest_schedule", ingestSchedule).
		Msg("Scheduler started")
	return nil
}

// Stop stops the cron instance and waits for running jobs to finish.
func (s *Service) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunIteration executes one queue iteration as a durable run.
func (s *Service) RunIteration(ctx context.Context) (*IterationResult, error) {
	return s.executeIteration(ctx, runIDPrefix+common.NewRunID())
}

// Recover resumes iterations whose journal was left open by a crash or
// shutdown. Replay skips the steps that already ran, so a resumed iteration
// picks up where it stopped; a claimed item is settled instead of gating the
// queue forever.
func (s *Service) Recover(ctx context.Context) error {
	interrupted, err := s.engine.Interrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to list interrupted runs: %w", err)
	}

	for _, record := range interrupted {
		if !strings.HasPrefix(record.ID, runIDPrefix) || strings.Contains(record.ID, ":") {
			continue
		}
		s.logger.Info().
			Str("run_id", record.ID).
			Msg("Resuming interrupted queue iteration")
		if _, err := s.executeIteration(ctx, record.ID); err != nil {
			return fmt.Errorf("failed to resume iteration %s: %w", record.ID, err)
		}
	}
	return nil
}

func (s *Service) executeIteration(ctx context.Context, runID string) (*IterationResult, error) {
	var result *IterationResult
	err := s.engine.Execute(ctx, runID, func(ctx context.Context, run *engine.Run) error {
		var iterErr error
		result, iterErr = s.iterate(ctx, run)
		return iterErr
	})
	if err != nil {
		return nil, err
	}

	// Settled iterations no longer need their journal
	if result != nil && result.Processed && result.Message == "" {
		if err := s.engine.Prune(ctx, runID); err != nil {
			s.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to prune iteration journal")
		}
	}
	return result, nil
}

// iterate processes at most one queue item. A pending item anywhere in the
// queue gates the whole iteration; this check is the only mutual exclusion
// between overlapping iterations.
func (s *Service) iterate(ctx context.Context, run *engine.Run) (*IterationResult, error) {
	log := run.Logger()

	pending, err := engine.Step(ctx, run, "list-pending", repoStep, func(ctx context.Context) ([]models.QueueItem, error) {
		return s.catalog.ListQueueItems(ctx, models.QueueStatusPending)
	})
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		log.Info().
			Str("item_id", pending[0].ID).
			Msg("Queue item already pending, skipping iteration")
		return &IterationResult{Processed: false, Message: "another item is pending"}, nil
	}

	fresh, err := engine.Step(ctx, run, "list-new", repoStep, func(ctx context.Context) ([]models.QueueItem, error) {
		return s.catalog.ListQueueItems(ctx, models.QueueStatusNew)
	})
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return &IterationResult{Processed: false, Message: "queue empty"}, nil
	}

	item := fresh[0]
	log.Info().
		Str("item_id", item.ID).
		Str("slug", item.Slug).
		Msg("Processing queue item")

	if err := engine.Sleep(ctx, run, "debounce", s.debounce); err != nil {
		return nil, err
	}

	if _, err := engine.Step(ctx, run, "mark-pending", repoStep, func(ctx context.Context) (bool, error) {
		if err := s.catalog.UpdateQueueItemStatus(ctx, item.ID, models.QueueStatusPending); err != nil {
			return false, err
		}
		return true, nil
	}); err != nil {
		return nil, err
	}

	childID := run.ID + ":enrich:" + item.ID
	enrichErr := engine.Child(ctx, run, "enrich", childID, func(ctx context.Context, child *engine.Run) error {
		_, err := s.enrichment.Run(ctx, child, enrich.Input{
			Name:         item.Slug,
			Fields:       item.Fields,
			AllowNewTags: s.allowNewTags,
		})
		return err
	})
	if enrichErr != nil {
		if ctx.Err() != nil {
			// Shutdown, not a pipeline failure: propagate so the journal
			// stays open and the item is settled on the next start.
			return nil, enrichErr
		}
		return s.failItem(ctx, run, item, enrichErr), nil
	}

	if err := engine.Sleep(ctx, run, "settle", s.settle); err != nil {
		return nil, err
	}

	if _, err := engine.Step(ctx, run, "delete-item", repoStep, func(ctx context.Context) (bool, error) {
		if err := s.catalog.DeleteQueueItem(ctx, item.ID); err != nil {
			return false, err
		}
		return true, nil
	}); err != nil {
		return nil, err
	}

	serviceID, err := engine.Step(ctx, run, "resolve-service", repoStep, func(ctx context.Context) (string, error) {
		record, err := s.catalog.FindServiceBySlug(ctx, common.Slugify(item.Slug))
		if err != nil {
			return "", err
		}
		if record == nil {
			return "", nil
		}
		return record.ID, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("item_id", item.ID).
		Str("service_id", serviceID).
		Msg("Queue item completed")

	return &IterationResult{Processed: true, ServiceID: serviceID}, nil
}

// failItem marks the item as errored. Marking is best-effort; the item stays
// in the queue for manual inspection either way.
func (s *Service) failItem(ctx context.Context, run *engine.Run, item models.QueueItem, cause error) *IterationResult {
	if _, err := engine.Step(ctx, run, "mark-error", repoStep, func(ctx context.Context) (bool, error) {
		if err := s.catalog.UpdateQueueItemStatus(ctx, item.ID, models.QueueStatusError); err != nil {
			return false, err
		}
		return true, nil
	}); err != nil {
		run.Logger().Warn().
			Err(err).
			Str("item_id", item.ID).
			Msg("Failed to mark queue item as errored")
	}

	run.Logger().Error().
		Err(cause).
		Str("item_id", item.ID).
		Str("slug", item.Slug).
		Msg("Queue item enrichment failed")

	return &IterationResult{Processed: true, Message: cause.Error()}
}

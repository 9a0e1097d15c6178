// Package app wires the service graph: storage, durable engine, AI
// providers, the content repository client, and the pipelines on top.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/common"
	"github.com/ternarybob/ditare/internal/engine"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/services/catalog"
	"github.com/ternarybob/ditare/internal/services/enrich"
	"github.com/ternarybob/ditare/internal/services/identity"
	"github.com/ternarybob/ditare/internal/services/ingest"
	"github.com/ternarybob/ditare/internal/services/llm"
	"github.com/ternarybob/ditare/internal/services/scheduler"
	"github.com/ternarybob/ditare/internal/services/translate"
	"github.com/ternarybob/ditare/internal/services/video"
	badgerstorage "github.com/ternarybob/ditare/internal/storage/badger"
)

// App is the initialized application with all services wired.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB         *badgerstorage.BadgerDB
	RunStorage interfaces.RunStorage
	Engine     *engine.Engine

	LLM     *llm.ProviderFactory
	Catalog *catalog.Client

	Enrichment  *enrich.Pipeline
	Translation *translate.Pipeline
	Scheduler   *scheduler.Service
	Syncer      *ingest.Syncer
}

// New initializes all services in dependency order.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := badgerstorage.NewBadgerDB(logger, &config.Engine.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run journal: %w", err)
	}

	runStorage := badgerstorage.NewRunStorage(db, logger)
	eng := engine.New(runStorage, config.Engine.MaxConcurrentSteps, logger)

	factory := llm.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)

	catalogClient := catalog.NewClient(
		config.Catalog.APIURL,
		config.Catalog.GraphQLURL,
		config.Catalog.APIToken,
		catalog.WithLogger(logger),
		catalog.WithRateLimit(config.Catalog.RequestsPerSecond),
	)

	translation := translate.NewPipeline(catalogClient, factory, config.Catalog.Locale, logger)

	enrichOpts := []enrich.PipelineOption{
		enrich.WithTranslation(func(ctx context.Context, run *engine.Run, serviceID string, fields []string) error {
			childID := run.ID + ":translate:" + serviceID
			return engine.Child(ctx, run, "translate", childID, func(ctx context.Context, child *engine.Run) error {
				_, err := translation.Run(ctx, child, translate.Input{
					ServiceID: serviceID,
					Fields:    fields,
				})
				return err
			})
		}),
	}

	if config.YouTube.APIKey != "" {
		youtube := video.NewYouTubeClient(
			config.YouTube.APIKey,
			video.WithLogger(logger),
			video.WithMaxResults(config.YouTube.MaxResults),
		)
		enrichOpts = append(enrichOpts, enrich.WithVideoSearch(youtube, llm.NewSelector(factory, "")))
	} else {
		logger.Warn().Msg("YouTube API key not configured, video step disabled")
	}

	enrichment := enrich.NewPipeline(catalogClient, factory, logger, enrichOpts...)

	app := &App{
		Config:      config,
		Logger:      logger,
		DB:          db,
		RunStorage:  runStorage,
		Engine:      eng,
		LLM:         factory,
		Catalog:     catalogClient,
		Enrichment:  enrichment,
		Translation: translation,
	}

	schedulerOpts := []scheduler.ServiceOption{
		scheduler.WithAllowNewTags(config.Scheduler.AllowNewTags),
	}

	if config.Identity.ClientID != "" && config.Identity.RefreshToken != "" {
		tokens := identity.NewTokenCache(
			identity.NewMicrosoftRefresher(&config.Identity),
			config.Identity.RefreshToken,
			logger,
		)
		graph := ingest.NewGraphClient(tokens, ingest.WithLogger(logger))
		app.Syncer = ingest.NewSyncer(graph, catalogClient, config.Identity.TaskListID, logger)
		schedulerOpts = append(schedulerOpts, scheduler.WithIngest(func(ctx context.Context) error {
			_, err := app.Syncer.SyncOnce(ctx)
			return err
		}))
	} else {
		logger.Warn().Msg("Identity credentials not configured, queue feed disabled")
	}

	app.Scheduler = scheduler.NewService(
		catalogClient,
		eng,
		enrichment,
		&config.Scheduler,
		logger,
		schedulerOpts...,
	)

	return app, nil
}

// EnrichOnce runs one enrichment as a fresh durable run. Used by the
// one-shot command line mode.
func (a *App) EnrichOnce(ctx context.Context, input enrich.Input) (*enrich.Result, error) {
	var result *enrich.Result
	err := a.Engine.Execute(ctx, common.NewRunID(), func(ctx context.Context, run *engine.Run) error {
		var runErr error
		result, runErr = a.Enrichment.Run(ctx, run, input)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close run journal")
		}
	}
}

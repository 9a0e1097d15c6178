// Package enrich implements the field-selective catalog enrichment pipeline.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/common"
	"github.com/ternarybob/ditare/internal/engine"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
	"github.com/ternarybob/ditare/internal/services/prompts"
)

// Field names accepted by Input.Fields.
const (
	FieldURL           = "url"
	FieldDescription   = "description"
	FieldAbstract      = "abstract"
	FieldFunctionality = "functionality"
	FieldShortfacts    = "shortfacts"
	FieldPricing       = "pricing"
	FieldTags          = "tags"
	FieldVideo         = "video"
)

// Step retry budgets per collaborator class.
var (
	repoStep  = engine.StepOptions{MaxAttempts: 3, Timeout: 2 * time.Minute}
	aiStep    = engine.StepOptions{MaxAttempts: 2, Timeout: 5 * time.Minute}
	videoStep = engine.StepOptions{MaxAttempts: 3, Timeout: 2 * time.Minute}
)

// translationEligible lists the fields the translation pipeline handles.
var translationEligible = []string{
	FieldDescription,
	FieldAbstract,
	FieldFunctionality,
	FieldShortfacts,
	FieldPricing,
}

// Input selects what one enrichment run generates. An empty Fields slice
// means every step runs.
type Input struct {
	Name         string
	Fields       []string
	AllowNewTags bool
	Provider     string
}

// Result reports the identity of the written record.
type Result struct {
	ServiceID string `json:"serviceId"`
}

// TranslateFunc kicks off translation of the given fields for a record. The
// pipeline treats it as best-effort.
type TranslateFunc func(ctx context.Context, run *engine.Run, serviceID string, fields []string) error

// Pipeline generates catalog content for one service.
type Pipeline struct {
	catalog   interfaces.CatalogService
	generator interfaces.TextGenerator
	selector  interfaces.StructuredSelector
	videos    interfaces.VideoSearcher
	translate TranslateFunc
	logger    arbor.ILogger
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithVideoSearch enables the video step.
func WithVideoSearch(videos interfaces.VideoSearcher, selector interfaces.StructuredSelector) PipelineOption {
	return func(p *Pipeline) {
		p.videos = videos
		p.selector = selector
	}
}

// WithTranslation enables the best-effort translation kickoff.
func WithTranslation(translate TranslateFunc) PipelineOption {
	return func(p *Pipeline) {
		p.translate = translate
	}
}

// NewPipeline creates an enrichment pipeline.
func NewPipeline(catalog interfaces.CatalogService, generator interfaces.TextGenerator, logger arbor.ILogger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		catalog:   catalog,
		generator: generator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline inside the given durable run. Success means the
// upsert completed; best-effort steps (video selection, translation kickoff)
// never fail the result.
func (p *Pipeline) Run(ctx context.Context, run *engine.Run, input Input) (*Result, error) {
	slug := common.Slugify(input.Name)
	should := fieldSelector(input.Fields)

	log := run.Logger()
	log.Info().
		Str("slug", slug).
		Strs("fields", input.Fields).
		Msg("Starting enrichment")

	existing, err := engine.Step(ctx, run, "find-service", repoStep, func(ctx context.Context) (*models.ServiceRecord, error) {
		return p.catalog.FindServiceBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}

	draft := models.ServiceDraft{}
	draft.Set("slug", slug)
	draft.Set("name", input.Name)

	if should(FieldURL) {
		rawURL, err := p.generateText(ctx, run, "generate-url", generateParams{
			prompt:   prompts.URL(input.Name),
			provider: input.Provider,
		})
		if err != nil {
			return nil, err
		}
		draft.SetText("url", common.EnforceHTTPS(rawURL))
	} else if existing != nil && existing.URL != "" {
		// Skipped steps carry the stored value forward unchanged
		draft.Set("url", existing.URL)
	}

	// Per-field temperatures; zero means the provider default.
	textSteps := []struct {
		field       string
		prompt      string
		system      string
		temperature float32
	}{
		{FieldDescription, prompts.Description(input.Name), prompts.SystemAuthor, 0},
		{FieldAbstract, prompts.Abstract(input.Name), prompts.SystemShorty, 0.5},
		{FieldFunctionality, prompts.Functionality(input.Name), "", 0},
		{FieldShortfacts, prompts.Shortfacts(input.Name), prompts.SystemShorty, 0.5},
		{FieldPricing, prompts.Pricing(input.Name), "", 0.3},
	}
	for _, step := range textSteps {
		if !should(step.field) {
			continue
		}
		text, err := p.generateText(ctx, run, "generate-"+step.field, generateParams{
			prompt:      step.prompt,
			system:      step.system,
			provider:    input.Provider,
			temperature: step.temperature,
		})
		if err != nil {
			return nil, err
		}
		draft.SetText(step.field, text)
	}

	if should(FieldTags) {
		tagIDs, err := p.reconcileTags(ctx, run, input)
		if err != nil {
			return nil, err
		}
		if len(tagIDs) > 0 {
			draft.Set("tags", tagIDs)
		}
	}

	if should(FieldVideo) && p.videos != nil {
		video, err := p.pickVideo(ctx, run, input.Name)
		if err != nil {
			return nil, err
		}
		if video != nil {
			draft.SetText("youtube_video", video.VideoID)
			draft.SetText("youtube_title", video.Title)
		}
	}

	compacted := draft.Compact()

	var serviceID string
	if existing != nil {
		serviceID, err = engine.Step(ctx, run, "update-service", repoStep, func(ctx context.Context) (string, error) {
			return p.catalog.UpdateService(ctx, existing.ID, compacted)
		})
	} else {
		serviceID, err = engine.Step(ctx, run, "create-service", repoStep, func(ctx context.Context) (string, error) {
			return p.catalog.CreateService(ctx, compacted)
		})
	}
	if err != nil {
		return nil, err
	}

	p.kickOffTranslation(ctx, run, serviceID, compacted)

	log.Info().
		Str("service_id", serviceID).
		Msg("Enrichment completed")

	return &Result{ServiceID: serviceID}, nil
}

type generateParams struct {
	prompt      string
	system      string
	provider    string
	temperature float32
}

func (p *Pipeline) generateText(ctx context.Context, run *engine.Run, stepName string, params generateParams) (string, error) {
	text, err := engine.Step(ctx, run, stepName, aiStep, func(ctx context.Context) (string, error) {
		return p.generator.Generate(ctx, interfaces.GenerateRequest{
			Prompt:      params.prompt,
			System:      params.system,
			Model:       params.provider,
			Temperature: params.temperature,
		})
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// pickVideo searches for candidates and asks the selector to choose one.
// Selection failure is reported but never aborts the pipeline.
func (p *Pipeline) pickVideo(ctx context.Context, run *engine.Run, name string) (*models.Video, error) {
	candidates, err := engine.Step(ctx, run, "search-videos", videoStep, func(ctx context.Context) ([]models.Video, error) {
		return p.videos.Search(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	video, err := engine.Step(ctx, run, "select-video", aiStep, func(ctx context.Context) (*models.Video, error) {
		candidatesJSON, err := models.VideosJSON(candidates)
		if err != nil {
			return nil, err
		}
		var picked models.Video
		if err := p.selector.SelectOne(ctx, prompts.Video(name, candidatesJSON), &picked); err != nil {
			return nil, err
		}
		return &picked, nil
	})
	if err != nil {
		run.Logger().Warn().
			Err(err).
			Str("service", name).
			Msg("Video selection failed, continuing without video")
		return nil, nil
	}
	if video == nil || video.VideoID == "" {
		return nil, nil
	}
	return video, nil
}

// kickOffTranslation starts translation of the eligible fields this run
// actually populated. Failures are logged and swallowed.
func (p *Pipeline) kickOffTranslation(ctx context.Context, run *engine.Run, serviceID string, written models.ServiceDraft) {
	if p.translate == nil {
		return
	}

	var populated []string
	for _, field := range translationEligible {
		if _, ok := written[field]; ok {
			populated = append(populated, field)
		}
	}
	if len(populated) == 0 {
		return
	}

	if err := p.translate(ctx, run, serviceID, populated); err != nil {
		run.Logger().Warn().
			Err(err).
			Str("service_id", serviceID).
			Msg("Translation kickoff failed")
	}
}

// fieldSelector returns the should-run policy: an empty selection runs
// everything, otherwise only the named fields.
func fieldSelector(fields []string) func(string) bool {
	if len(fields) == 0 {
		return func(string) bool { return true }
	}
	selected := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		selected[strings.ToLower(strings.TrimSpace(field))] = struct{}{}
	}
	return func(name string) bool {
		_, ok := selected[name]
		return ok
	}
}

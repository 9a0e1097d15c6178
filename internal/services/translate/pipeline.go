// Package translate implements the locale-variant translation pipeline.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/engine"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
	"github.com/ternarybob/ditare/internal/services/prompts"
)

var (
	repoStep = engine.StepOptions{MaxAttempts: 3, Timeout: 2 * time.Minute}
	aiStep   = engine.StepOptions{MaxAttempts: 2, Timeout: 5 * time.Minute}
)

// eligibleFields are the text fields the pipeline translates; the listed
// markdown flag selects the system directive.
var eligibleFields = []struct {
	name     string
	markdown bool
}{
	{"description", true},
	{"abstract", false},
	{"functionality", true},
	{"shortfacts", false},
	{"pricing", true},
}

// languageNames maps locale codes to the language name the translation
// prompt uses. Unknown locales fall back to the code itself.
var languageNames = map[string]string{
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"nl": "Dutch",
	"pt": "Portuguese",
}

// Input selects the record and the fields one translation run covers. An
// empty Fields slice translates every eligible field.
type Input struct {
	ServiceID string
	Fields    []string
}

// Result reports the outcome of a translation run.
type Result struct {
	Success bool `json:"success"`
}

// Pipeline translates catalog text fields into the configured locale.
type Pipeline struct {
	catalog   interfaces.CatalogService
	generator interfaces.TextGenerator
	locale    string
	logger    arbor.ILogger
}

// NewPipeline creates a translation pipeline targeting the given locale.
func NewPipeline(catalog interfaces.CatalogService, generator interfaces.TextGenerator, locale string, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		catalog:   catalog,
		generator: generator,
		locale:    locale,
		logger:    logger,
	}
}

// Run translates the requested fields and overwrites the locale variant.
// Unrequested fields keep the existing variant value; non-text fields are
// always carried over from the canonical record.
func (p *Pipeline) Run(ctx context.Context, run *engine.Run, input Input) (*Result, error) {
	log := run.Logger()
	log.Info().
		Str("service_id", input.ServiceID).
		Str("locale", p.locale).
		Strs("fields", input.Fields).
		Msg("Starting translation")

	canonical, err := engine.Step(ctx, run, "read-canonical", repoStep, func(ctx context.Context) (*models.ServiceRecord, error) {
		return p.catalog.GetServiceByID(ctx, input.ServiceID, "")
	})
	if err != nil {
		return nil, err
	}
	if canonical == nil {
		return nil, fmt.Errorf("service %s not found", input.ServiceID)
	}

	variant, err := engine.Step(ctx, run, "read-variant", repoStep, func(ctx context.Context) (*models.ServiceRecord, error) {
		return p.catalog.GetServiceByID(ctx, input.ServiceID, p.locale)
	})
	if err != nil {
		return nil, err
	}

	draft := models.ServiceDraft{}
	draft.SetText("name", canonical.Name)
	draft.SetText("url", canonical.URL)
	draft.Set("tags", canonical.TagIDs())
	draft.SetText("youtube_video", canonical.YouTubeVideo)
	draft.SetText("youtube_title", canonical.YouTubeTitle)
	draft.SetText("publishdate", canonical.PublishDate)
	if canonical.Top != nil {
		draft.Set("top", *canonical.Top)
	}
	if canonical.ReviewCount != nil {
		draft.Set("reviewCount", *canonical.ReviewCount)
	}
	if canonical.AverageRating != nil {
		draft.Set("averageRating", *canonical.AverageRating)
	}

	requested := fieldSelector(input.Fields)
	language := p.languageName()

	for _, field := range eligibleFields {
		source := canonicalValue(canonical, field.name)

		if !requested(field.name) {
			if variant != nil {
				draft.SetText(field.name, canonicalValue(variant, field.name))
			}
			continue
		}

		// A cleared canonical field clears the variant too, blanking any
		// stale translation
		if source == "" {
			draft.Set(field.name, "")
			continue
		}

		system := prompts.TranslateSystem
		if field.markdown {
			system = prompts.TranslateMarkdownSystem
		}

		translated, err := engine.Step(ctx, run, "translate-"+field.name, aiStep, func(ctx context.Context) (string, error) {
			return p.generator.Generate(ctx, interfaces.GenerateRequest{
				Prompt:      prompts.Translate(source, language),
				System:      system,
				Temperature: 0.3,
			})
		})
		if err != nil {
			return nil, err
		}
		draft.SetText(field.name, strings.TrimSpace(translated))
	}

	_, err = engine.Step(ctx, run, "write-variant", repoStep, func(ctx context.Context) (bool, error) {
		if err := p.catalog.UpdateServiceTranslation(ctx, input.ServiceID, p.locale, draft); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("service_id", input.ServiceID).
		Msg("Translation completed")

	return &Result{Success: true}, nil
}

func (p *Pipeline) languageName() string {
	if name, ok := languageNames[p.locale]; ok {
		return name
	}
	return p.locale
}

func canonicalValue(record *models.ServiceRecord, field string) string {
	switch field {
	case "description":
		return record.Description
	case "abstract":
		return record.Abstract
	case "functionality":
		return record.Functionality
	case "shortfacts":
		return record.Shortfacts
	case "pricing":
		return record.Pricing
	}
	return ""
}

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

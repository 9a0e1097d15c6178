package enrich

import (
	"context"
	"strings"

	"github.com/ternarybob/ditare/internal/engine"
	"github.com/ternarybob/ditare/internal/interfaces"
	"github.com/ternarybob/ditare/internal/models"
	"github.com/ternarybob/ditare/internal/services/prompts"
)

// reconcileTags fetches the taxonomy, asks the generator to choose from the
// assignable names, and resolves the answer to tag ids. Candidates that name
// an excluded tag are never assigned. Unknown candidates are created with
// status proposed when allowed, otherwise dropped silently. Ids keep the
// insertion order of first match, deduplicated.
func (p *Pipeline) reconcileTags(ctx context.Context, run *engine.Run, input Input) ([]string, error) {
	taxonomy, err := engine.Step(ctx, run, "list-tags", repoStep, func(ctx context.Context) ([]models.Tag, error) {
		return p.catalog.ListTags(ctx)
	})
	if err != nil {
		return nil, err
	}

	var assignableNames []string
	byName := make(map[string]models.Tag, len(taxonomy))
	for _, tag := range taxonomy {
		byName[strings.ToLower(tag.Name)] = tag
		if tag.Assignable() {
			assignableNames = append(assignableNames, tag.Name)
		}
	}

	answer, err := engine.Step(ctx, run, "generate-tags", aiStep, func(ctx context.Context) (string, error) {
		return p.generator.Generate(ctx, interfaces.GenerateRequest{
			Prompt:      prompts.Tags(input.Name, strings.Join(assignableNames, ", ")),
			Model:       input.Provider,
			Temperature: 0.3,
		})
	})
	if err != nil {
		return nil, err
	}

	var tagIDs []string
	seen := make(map[string]struct{})
	for _, candidate := range splitCandidates(answer) {
		id, err := p.resolveCandidate(ctx, run, candidate, byName, input.AllowNewTags)
		if err != nil {
			return nil, err
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		tagIDs = append(tagIDs, id)
	}
	return tagIDs, nil
}

// resolveCandidate maps one candidate name to a tag id, or "" when the
// candidate is dropped.
func (p *Pipeline) resolveCandidate(ctx context.Context, run *engine.Run, candidate string, byName map[string]models.Tag, allowNew bool) (string, error) {
	if known, ok := byName[strings.ToLower(candidate)]; ok {
		if known.Excluded() {
			run.Logger().Debug().
				Str("tag", candidate).
				Msg("Dropping excluded tag candidate")
			return "", nil
		}
		return known.ID, nil
	}

	if !allowNew {
		run.Logger().Debug().
			Str("tag", candidate).
			Msg("Dropping unknown tag candidate")
		return "", nil
	}

	return engine.Step(ctx, run, "create-tag:"+candidate, repoStep, func(ctx context.Context) (string, error) {
		return p.catalog.CreateTag(ctx, candidate, models.TagStatusProposed)
	})
}

func splitCandidates(answer string) []string {
	var candidates []string
	for _, part := range strings.Split(answer, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	return candidates
}

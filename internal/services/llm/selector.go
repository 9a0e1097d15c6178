package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/ditare/internal/interfaces"
)

// Selector asks a text generator to pick one candidate and parses the
// structured answer, tolerating models that wrap JSON in markdown fences
// or escape newlines as literal backslash sequences.
type Selector struct {
	generator interfaces.TextGenerator
	model     string
}

// NewSelector creates a selector over the given text generator
func NewSelector(generator interfaces.TextGenerator, model string) *Selector {
	return &Selector{
		generator: generator,
		model:     model,
	}
}

var _ interfaces.StructuredSelector = (*Selector)(nil)

// SelectOne sends the prompt and unmarshals the normalized response into
// result. Selection runs cool so repeated calls pick consistently.
func (s *Selector) SelectOne(ctx context.Context, prompt string, result interface{}) error {
	text, err := s.generator.Generate(ctx, interfaces.GenerateRequest{
		Prompt:      prompt,
		Model:       s.model,
		Temperature: 0.3,
	})
	if err != nil {
		return fmt.Errorf("selection call failed: %w", err)
	}

	normalized := NormalizeStructured(text)
	if normalized == "" {
		return fmt.Errorf("empty selection response")
	}

	if err := json.Unmarshal([]byte(normalized), result); err != nil {
		return fmt.Errorf("failed to parse selection response %q: %w", normalized, err)
	}
	return nil
}

// NormalizeStructured strips markdown code fences and literal escaped
// newline sequences from a model response so the remainder parses as JSON
func NormalizeStructured(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	// Some models emit "\n" as two characters instead of a newline
	s = strings.ReplaceAll(s, `\n`, "")

	return strings.TrimSpace(s)
}

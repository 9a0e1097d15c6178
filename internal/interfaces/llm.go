package interfaces

import (
	"context"
)

// GenerateRequest is a provider-agnostic text-generation request
type GenerateRequest struct {
	Prompt      string
	System      string  // Optional system directive
	Temperature float32 // 0 uses the provider default
	Model       string  // Optional model override, e.g. "claude/..." or "gemini-..."
}

// TextGenerator is the prompt-in/text-out contract all AI text fields use,
// regardless of provider. Providers are interchangeable implementations
// selected by configuration, never by ambient process state.
type TextGenerator interface {
	Generate(ctx context.Context, request GenerateRequest) (string, error)
}

// StructuredSelector asks a model to choose one item and return it as
// structured data. Implementations must tolerate responses wrapped in code
// fences or containing literal escaped-newline sequences before JSON parsing.
type StructuredSelector interface {
	SelectOne(ctx context.Context, prompt string, result interface{}) error
}

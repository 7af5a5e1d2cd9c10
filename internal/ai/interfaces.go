package ai

import (
	"context"
)

// Prompt is a rendered system and user prompt pair.
type Prompt struct {
	System string
	User   string
}

// GenerateOptions shape a single model call.
type GenerateOptions struct {
	// JSON asks the model for an application/json response.
	JSON bool
}

// Response is the raw model output and its token usage.
type Response struct {
	Text  string
	Usage *TokenUsage
}

// TokenUsage represents token usage information from model responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the model behind one operation
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// Provider is one model backend configured for one operation.
type Provider interface {
	Generate(ctx context.Context, prompt Prompt, opts GenerateOptions) (*Response, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// Completer renders the prompt of an operation and returns the model's text.
// Output is untrusted; callers validate it and fall back on failure.
type Completer interface {
	Complete(ctx context.Context, operation string, data PromptData) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, operation string, data PromptData) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, operation string, data PromptData) (string, error) {
	return f(ctx, operation, data)
}

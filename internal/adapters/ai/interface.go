package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by generators without credentials
var ErrNotConfigured = errors.New("generative model not configured")

// Prompt is a single-turn request to a generative model
type Prompt struct {
	System string
	User   string
}

// Generator represents a generative model provider that answers with JSON text
type Generator interface {
	// Generate returns the raw model output for prompt
	Generate(ctx context.Context, prompt Prompt) (string, error)

	// GetName returns provider name
	GetName() string
}

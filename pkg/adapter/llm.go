package adapter

import "context"

// GenerateRequest is a single-turn completion request
type GenerateRequest struct {
	// System is passed as the system instruction when the provider supports one
	System      string
	Prompt      string
	Temperature float64
	// Model overrides the client's default model when not empty
	Model string
}

// TextGenerator produces one text completion per request
type TextGenerator interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}

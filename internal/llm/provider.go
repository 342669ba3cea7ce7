// Package llm sends short structured prompts to a hosted model and returns
// schema-checked JSON. The coach is its only caller: one system prompt, one
// user prompt describing an attempt, one JSON document back.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates structured JSON from a prompt.
type Provider interface {
	// Generate sends req and returns the response. When req.Schema is set
	// the returned Content has been checked against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the resolved model identifier.
	ModelID() string
}

// Request is a single-turn prompt.
type Request struct {
	System string
	Prompt string

	// Schema, when set, is passed to the backend's structured output mode
	// and the reply is checked against it.
	Schema *Schema

	MaxTokens   int
	Temperature float64 // 0 leaves the backend default
}

type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

// finish rejects truncated output and output that fails req.Schema.
func finish(provider string, req Request, content json.RawMessage, truncated bool) error {
	if truncated {
		return &Error{Kind: ErrTruncated, Provider: provider, Content: content}
	}
	if req.Schema == nil {
		return nil
	}
	if err := req.Schema.Check(content); err != nil {
		return &Error{Kind: ErrInvalidResponse, Provider: provider, Content: content, Err: err}
	}
	return nil
}

// Package llm provides completion clients for the insight pipeline.
package llm

import (
	"context"

	"github.com/google/uuid"
)

// GenerateOptions tunes a single completion call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// GenerateResponseResult is a completion plus usage statistics.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// ConversationID is set when the call was recorded.
	ConversationID uuid.UUID
}

// LLMClient defines the completion operation the pipeline depends on.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse sends prompt with systemMessage and returns the model's text.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, opts GenerateOptions) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
)

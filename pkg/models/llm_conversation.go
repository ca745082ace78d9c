package models

import (
	"time"

	"github.com/google/uuid"
)

// LLMConversation records a single completion call with its verbatim input and output.
// Stored in graveyard_llm_conversations.
type LLMConversation struct {
	ID      uuid.UUID      `json:"id"`
	UserID  uuid.UUID      `json:"user_id"`
	Context map[string]any `json:"context,omitempty"` // phase, project_id, etc.

	Provider string `json:"provider"`
	Model    string `json:"model"`

	SystemMessage string   `json:"system_message,omitempty"`
	Prompt        string   `json:"prompt"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`

	ResponseContent string `json:"response_content,omitempty"`

	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
	DurationMs       int  `json:"duration_ms"`

	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Status values for LLM conversations.
const (
	LLMConversationStatusSuccess = "success"
	LLMConversationStatusError   = "error"
	LLMConversationStatusTimeout = "timeout"
)

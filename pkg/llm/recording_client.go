package llm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// RecordingClient wraps an LLMClient and records every call for one user.
type RecordingClient struct {
	inner    LLMClient
	recorder ConversationRecorder
	provider string
	userID   uuid.UUID
}

// NewRecordingClient creates a recording wrapper around inner.
func NewRecordingClient(inner LLMClient, recorder ConversationRecorder, provider string, userID uuid.UUID) *RecordingClient {
	return &RecordingClient{
		inner:    inner,
		recorder: recorder,
		provider: provider,
		userID:   userID,
	}
}

// GenerateResponse calls the inner client and queues the conversation for
// recording. The conversation id travels to the provider as a request header
// and comes back on the result, including on failure.
func (c *RecordingClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	opts GenerateOptions,
) (*GenerateResponseResult, error) {
	temperature := opts.Temperature
	maxTokens := opts.MaxTokens
	conv := &models.LLMConversation{
		ID:            uuid.New(),
		UserID:        c.userID,
		Context:       GetContext(ctx),
		Provider:      c.provider,
		Model:         c.inner.GetModel(),
		SystemMessage: systemMessage,
		Prompt:        prompt,
		Temperature:   &temperature,
		MaxTokens:     &maxTokens,
	}
	if conv.Context == nil {
		conv.Context = map[string]any{}
	}
	conv.Context[phaseContextName] = PhaseFromContext(ctx)

	start := time.Now()
	result, err := c.inner.GenerateResponse(WithConversationID(ctx, conv.ID), prompt, systemMessage, opts)
	conv.DurationMs = int(time.Since(start).Milliseconds())

	if err != nil {
		conv.Status = models.LLMConversationStatusError
		if GetErrorType(err) == ErrorTypeTimeout {
			conv.Status = models.LLMConversationStatusTimeout
		}
		conv.ErrorMessage = logging.SanitizeError(err)
		c.recorder.Record(conv)
		return &GenerateResponseResult{ConversationID: conv.ID}, err
	}

	conv.Status = models.LLMConversationStatusSuccess
	if result != nil {
		result.ConversationID = conv.ID
		conv.ResponseContent = result.Content
		conv.PromptTokens = &result.PromptTokens
		conv.CompletionTokens = &result.CompletionTokens
		conv.TotalTokens = &result.TotalTokens
	}
	c.recorder.Record(conv)

	return result, nil
}

// GetModel returns the inner client's model.
func (c *RecordingClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the inner client's endpoint.
func (c *RecordingClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}

var _ LLMClient = (*RecordingClient)(nil)

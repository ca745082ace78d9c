package llm

import (
	"context"
	"maps"

	"github.com/google/uuid"
)

type contextKey string

const (
	llmContextKey   contextKey = "llm_context"
	conversationKey contextKey = "llm_conversation_id"
)

const phaseContextName = "phase"

// Phases of the pipeline, used as recording context and metric labels.
const (
	PhaseDetection  = "detection"
	PhaseCoaching   = "coaching"
	PhasePostMortem = "post_mortem"
)

// WithContext returns a context with recording context values merged into
// any already present.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	merged := GetContext(ctx)
	if merged == nil {
		merged = make(map[string]any, len(values))
	}
	maps.Copy(merged, values)
	return context.WithValue(ctx, llmContextKey, merged)
}

// GetContext returns a copy of the recording context, or nil.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		return maps.Clone(c)
	}
	return nil
}

// WithPhase tags the context with the pipeline phase making the call.
func WithPhase(ctx context.Context, phase string) context.Context {
	return WithContext(ctx, map[string]any{phaseContextName: phase})
}

// PhaseFromContext returns the phase set by WithPhase, or "unknown".
func PhaseFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		if phase, ok := c[phaseContextName].(string); ok {
			return phase
		}
	}
	return "unknown"
}

// WithConversationID attaches the conversation ID sent as X-Request-Id.
func WithConversationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, conversationKey, id)
}

// ConversationIDFromContext returns the conversation ID, if any.
func ConversationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(conversationKey).(uuid.UUID)
	return id, ok
}

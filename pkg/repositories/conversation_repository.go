package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// ConversationRepository provides data access for recorded completion calls.
type ConversationRepository interface {
	Save(ctx context.Context, conv *models.LLMConversation) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LLMConversation, error)
	// ListByPhase returns conversations whose context phase matches, newest first.
	ListByPhase(ctx context.Context, userID uuid.UUID, phase string, limit int) ([]*models.LLMConversation, error)
}

type conversationRepository struct{}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository() ConversationRepository {
	return &conversationRepository{}
}

var _ ConversationRepository = (*conversationRepository)(nil)

const conversationColumns = `id, user_id, context, provider, model, system_message, prompt, temperature, max_tokens,
		       response_content, prompt_tokens, completion_tokens, total_tokens, duration_ms,
		       status, error_message, created_at`

func (r *conversationRepository) Save(ctx context.Context, conv *models.LLMConversation) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}

	contextJSON := []byte("{}")
	if conv.Context != nil {
		contextJSON, err = json.Marshal(conv.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
	}

	query := `
		INSERT INTO graveyard_llm_conversations (
			id, user_id, context, provider, model, system_message, prompt, temperature, max_tokens,
			response_content, prompt_tokens, completion_tokens, total_tokens, duration_ms,
			status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = scope.Conn.Exec(ctx, query,
		conv.ID, conv.UserID, contextJSON, conv.Provider, conv.Model, conv.SystemMessage, conv.Prompt,
		conv.Temperature, conv.MaxTokens,
		conv.ResponseContent, conv.PromptTokens, conv.CompletionTokens, conv.TotalTokens, conv.DurationMs,
		conv.Status, conv.ErrorMessage, conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save llm conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LLMConversation, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + conversationColumns + `
		FROM graveyard_llm_conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	return scanConversationRows(rows)
}

func (r *conversationRepository) ListByPhase(ctx context.Context, userID uuid.UUID, phase string, limit int) ([]*models.LLMConversation, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + conversationColumns + `
		FROM graveyard_llm_conversations
		WHERE user_id = $1 AND context->>'phase' = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := scope.Conn.Query(ctx, query, userID, phase, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	return scanConversationRows(rows)
}

func scanConversationRows(rows pgx.Rows) ([]*models.LLMConversation, error) {
	var conversations []*models.LLMConversation
	for rows.Next() {
		var conv models.LLMConversation
		var contextJSON []byte
		err := rows.Scan(
			&conv.ID, &conv.UserID, &contextJSON, &conv.Provider, &conv.Model, &conv.SystemMessage, &conv.Prompt,
			&conv.Temperature, &conv.MaxTokens,
			&conv.ResponseContent, &conv.PromptTokens, &conv.CompletionTokens, &conv.TotalTokens, &conv.DurationMs,
			&conv.Status, &conv.ErrorMessage, &conv.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &conv.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal context: %w", err)
			}
		}
		conversations = append(conversations, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return conversations, nil
}

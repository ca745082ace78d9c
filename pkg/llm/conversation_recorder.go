package llm

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
)

// OwnerContextFunc acquires an owner-scoped database connection for background work.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type OwnerContextFunc func(ctx context.Context, userID uuid.UUID) (context.Context, func(), error)

// ConversationRecorder persists completed completion calls.
type ConversationRecorder interface {
	// Record queues a conversation for persistence. It never blocks.
	Record(conv *models.LLMConversation)
}

// AsyncConversationRecorder records conversations on a background goroutine so
// completion calls are never slowed by the database.
type AsyncConversationRecorder struct {
	repo        repositories.ConversationRepository
	getOwnerCtx OwnerContextFunc
	logger      *zap.Logger
	queue       chan *models.LLMConversation
	done        chan struct{}
}

// NewAsyncConversationRecorder creates a recorder and starts its worker.
// queueSize bounds the buffer; when it is full, records are dropped with a warning.
func NewAsyncConversationRecorder(
	repo repositories.ConversationRepository,
	getOwnerCtx OwnerContextFunc,
	logger *zap.Logger,
	queueSize int,
) *AsyncConversationRecorder {
	if queueSize <= 0 {
		queueSize = 100
	}

	r := &AsyncConversationRecorder{
		repo:        repo,
		getOwnerCtx: getOwnerCtx,
		logger:      logger.Named("conversation-recorder"),
		queue:       make(chan *models.LLMConversation, queueSize),
		done:        make(chan struct{}),
	}

	go r.processQueue()

	return r
}

// Record queues a conversation for async persistence.
func (r *AsyncConversationRecorder) Record(conv *models.LLMConversation) {
	select {
	case r.queue <- conv:
	default:
		metrics.RecordFailedWrite("llm_conversation")
		r.logger.Warn("Conversation record queue full, dropping entry",
			zap.String("user_id", conv.UserID.String()),
			zap.String("model", conv.Model))
	}
}

// Close stops the recorder and waits for queued records to be saved.
func (r *AsyncConversationRecorder) Close() {
	close(r.queue)
	<-r.done
}

func (r *AsyncConversationRecorder) processQueue() {
	defer close(r.done)

	for conv := range r.queue {
		r.save(conv)
	}
}

func (r *AsyncConversationRecorder) save(conv *models.LLMConversation) {
	ctx, cleanup, err := r.getOwnerCtx(context.Background(), conv.UserID)
	if err != nil {
		metrics.RecordFailedWrite("llm_conversation")
		r.logger.Error("Failed to acquire owner context for conversation save",
			zap.String("user_id", conv.UserID.String()),
			zap.Error(err))
		return
	}
	defer cleanup()

	if err := r.repo.Save(ctx, conv); err != nil {
		metrics.RecordFailedWrite("llm_conversation")
		r.logger.Error("Failed to save LLM conversation",
			zap.String("user_id", conv.UserID.String()),
			zap.String("model", conv.Model),
			zap.Error(err))
		return
	}

	r.logger.Debug("Saved LLM conversation",
		zap.String("id", conv.ID.String()),
		zap.String("status", conv.Status),
		zap.Int("duration_ms", conv.DurationMs))
}

var _ ConversationRecorder = (*AsyncConversationRecorder)(nil)

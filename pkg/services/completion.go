package services

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/llm"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/retry"
)

// Generation parameters per pipeline phase.
var (
	postMortemOptions = llm.GenerateOptions{Temperature: 0.7, MaxTokens: 2000}
	detectionOptions  = llm.GenerateOptions{Temperature: 0.3, MaxTokens: 1000}
	coachingOptions   = llm.GenerateOptions{Temperature: 0.7, MaxTokens: 1500}
)

// completion is one prompt sent to the completion service.
type completion struct {
	client        llm.LLMClient
	retry         *retry.Config
	prompt        string
	systemMessage string
	opts          llm.GenerateOptions
	logger        *zap.Logger
}

// text runs the completion, retrying transient failures.
func (c completion) text(ctx context.Context) (string, error) {
	var content string
	err := retry.DoIfRetryable(ctx, c.retry, func() error {
		result, err := c.client.GenerateResponse(ctx, c.prompt, c.systemMessage, c.opts)
		if err != nil {
			classified := llm.ClassifyError(err)
			c.logger.Warn("Completion call failed",
				zap.String("phase", llm.PhaseFromContext(ctx)),
				zap.String("error_type", string(classified.Type)),
				zap.Bool("retryable", classified.Retryable),
				zap.Error(err))
			return classified
		}
		content = result.Content
		return nil
	})
	if err != nil {
		return "", phaseError(ctx, err)
	}
	return content, nil
}

// completeJSON runs the completion and decodes its JSON body into T. A body
// that does not decode is retried like any other transient failure.
func completeJSON[T any](ctx context.Context, c completion) (T, error) {
	var out T
	err := retry.DoIfRetryable(ctx, c.retry, func() error {
		result, err := c.client.GenerateResponse(ctx, c.prompt, c.systemMessage, c.opts)
		if err != nil {
			classified := llm.ClassifyError(err)
			c.logger.Warn("Completion call failed",
				zap.String("phase", llm.PhaseFromContext(ctx)),
				zap.String("error_type", string(classified.Type)),
				zap.Bool("retryable", classified.Retryable),
				zap.Error(err))
			return classified
		}
		parsed, err := llm.ParseJSONResponse[T](result.Content)
		if err != nil {
			c.logger.Warn("Completion returned malformed JSON",
				zap.String("phase", llm.PhaseFromContext(ctx)),
				zap.String("conversation_id", result.ConversationID.String()),
				zap.Error(err))
			return err
		}
		out = parsed
		return nil
	})
	if err != nil {
		return out, phaseError(ctx, err)
	}
	return out, nil
}

// phaseError tags a completion failure with the sentinel callers branch on.
func phaseError(ctx context.Context, err error) error {
	phase := llm.PhaseFromContext(ctx)
	if llm.GetErrorType(err) == llm.ErrorTypeMalformed {
		return fmt.Errorf("%s: %w: %w", phase, apperrors.ErrMalformedResponse, err)
	}
	return fmt.Errorf("%s: %w: %w", phase, apperrors.ErrUpstreamFailure, err)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

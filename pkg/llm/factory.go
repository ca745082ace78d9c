package llm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/audit"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/config"
)

// LLMClientFactory creates completion clients bound to one user.
// Use this interface for dependency injection and testing.
type LLMClientFactory interface {
	CreateForUser(ctx context.Context, userID uuid.UUID) (LLMClient, error)
}

// ClientFactory builds the configured provider client once, guards it with a
// shared timeout, rate limit and circuit breaker, and hands out per-user
// recording wrappers.
type ClientFactory struct {
	provider string
	guarded  *GuardedClient
	recorder ConversationRecorder // Optional: if set, wraps clients to record conversations
	logger   *zap.Logger
}

// NewClientFactory creates the provider client described by cfg. auditor may
// be nil.
func NewClientFactory(cfg *config.LLMConfig, auditor *audit.SecurityAuditor, logger *zap.Logger) (*ClientFactory, error) {
	clientCfg := &Config{
		Endpoint: cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}

	var (
		inner LLMClient
		err   error
	)
	switch cfg.Provider {
	case config.ProviderAnthropic:
		inner, err = NewAnthropicClient(clientCfg, logger)
	case config.ProviderOpenAI:
		inner, err = NewClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	guarded := NewGuardedClient(inner, GuardOptions{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             1,
		CircuitBreaker: CircuitBreakerConfig{
			Threshold:  cfg.CircuitBreakerThreshold,
			ResetAfter: cfg.CircuitBreakerReset,
		},
		Auditor: auditor,
	}, logger)

	return &ClientFactory{
		provider: cfg.Provider,
		guarded:  guarded,
		logger:   logger,
	}, nil
}

// SetRecorder enables conversation recording for all clients created by this factory.
// Pass nil to disable recording.
func (f *ClientFactory) SetRecorder(recorder ConversationRecorder) {
	f.recorder = recorder
}

// CreateForUser returns the guarded client, wrapped to record conversations
// under userID when a recorder is set.
func (f *ClientFactory) CreateForUser(_ context.Context, userID uuid.UUID) (LLMClient, error) {
	if f.recorder != nil {
		return NewRecordingClient(f.guarded, f.recorder, f.provider, userID), nil
	}
	return f.guarded, nil
}

// Breaker exposes the shared circuit breaker for health reporting.
func (f *ClientFactory) Breaker() *CircuitBreaker {
	return f.guarded.Breaker()
}

var _ LLMClientFactory = (*ClientFactory)(nil)

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/audit"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
)

func TestGuardedClient_PassesThroughSuccess(t *testing.T) {
	inner := NewMockLLMClient()
	inner.GenerateResponseFunc = func(context.Context, string, string, GenerateOptions) (*GenerateResponseResult, error) {
		return &GenerateResponseResult{Content: "ok", PromptTokens: 3, CompletionTokens: 4}, nil
	}
	client := NewGuardedClient(inner, GuardOptions{}, zap.NewNop())

	result, err := client.GenerateResponse(context.Background(), "p", "s", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, CircuitClosed, client.Breaker().State())
}

func TestGuardedClient_TimeoutIsRetryable(t *testing.T) {
	inner := NewMockLLMClient()
	inner.GenerateResponseFunc = func(ctx context.Context, _, _ string, _ GenerateOptions) (*GenerateResponseResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	client := NewGuardedClient(inner, GuardOptions{Timeout: 20 * time.Millisecond}, zap.NewNop())

	_, err := client.GenerateResponse(context.Background(), "p", "s", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	assert.True(t, IsRetryable(err))
}

func TestGuardedClient_OpensCircuitAfterThreshold(t *testing.T) {
	inner := NewMockLLMClient()
	inner.GenerateResponseFunc = func(context.Context, string, string, GenerateOptions) (*GenerateResponseResult, error) {
		return nil, errors.New("HTTP 503 Service Unavailable")
	}
	client := NewGuardedClient(inner, GuardOptions{
		CircuitBreaker: CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute},
	}, zap.NewNop())

	for range 2 {
		_, err := client.GenerateResponse(context.Background(), "p", "s", GenerateOptions{})
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, client.Breaker().State())

	_, err := client.GenerateResponse(context.Background(), "p", "s", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeCircuitOpen, GetErrorType(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 2, inner.Calls(), "an open circuit must not reach the provider")
}

func TestGuardedClient_RateLimiterHonorsCancellation(t *testing.T) {
	client := NewGuardedClient(NewMockLLMClient(), GuardOptions{RequestsPerSecond: 0.001, Burst: 1}, zap.NewNop())

	_, err := client.GenerateResponse(context.Background(), "p", "s", GenerateOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.GenerateResponse(ctx, "p", "s", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeRateLimited, GetErrorType(err))
}

func TestGuardedClient_ReportsRejectedCredentials(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	inner := NewMockLLMClient()
	inner.GenerateResponseFunc = func(context.Context, string, string, GenerateOptions) (*GenerateResponseResult, error) {
		return nil, ClassifyError(errors.New("HTTP 401 Unauthorized: invalid api key"))
	}
	client := NewGuardedClient(inner, GuardOptions{Auditor: audit.NewSecurityAuditor(zap.New(core))}, zap.NewNop())

	claims := &auth.Claims{}
	claims.Subject = "5d0f1c7e-1d2b-4a3c-9e8f-0a1b2c3d4e5f"
	ctx := WithPhase(auth.WithClaims(context.Background(), claims, "token"), PhaseCoaching)

	_, err := client.GenerateResponse(ctx, "p", "s", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))

	events := recorded.FilterLoggerName("security_audit").All()
	require.Len(t, events, 1)
	assert.Equal(t, zapcore.ErrorLevel, events[0].Level)
	assert.Equal(t, claims.Subject, events[0].ContextMap()["user_id"])
}

func TestGuardedClient_OtherFailuresAreNotAudited(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	inner := NewMockLLMClient()
	inner.GenerateResponseFunc = func(context.Context, string, string, GenerateOptions) (*GenerateResponseResult, error) {
		return nil, ClassifyError(errors.New("HTTP 503 Service Unavailable"))
	}
	client := NewGuardedClient(inner, GuardOptions{Auditor: audit.NewSecurityAuditor(zap.New(core))}, zap.NewNop())

	_, err := client.GenerateResponse(context.Background(), "p", "s", GenerateOptions{})
	require.Error(t, err)
	assert.Zero(t, recorded.Len())
}

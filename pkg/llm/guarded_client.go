package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/audit"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// GuardOptions configures a GuardedClient.
type GuardOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // zero disables rate limiting
	Burst             int
	CircuitBreaker    CircuitBreakerConfig
	Auditor           *audit.SecurityAuditor // optional; receives rejected-credential events
}

// GuardedClient wraps a provider client with a per-call timeout, a client-side
// rate limit and a circuit breaker, and reports every call to metrics.
type GuardedClient struct {
	inner   LLMClient
	timeout time.Duration
	limiter *rate.Limiter
	breaker *CircuitBreaker
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewGuardedClient wraps inner with the given guards.
func NewGuardedClient(inner LLMClient, opts GuardOptions, logger *zap.Logger) *GuardedClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := max(opts.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	cbCfg := opts.CircuitBreaker
	userHook := cbCfg.OnStateChange
	cbCfg.OnStateChange = func(s CircuitState) {
		metrics.SetCircuitState(int(s))
		if userHook != nil {
			userHook(s)
		}
	}

	return &GuardedClient{
		inner:   inner,
		timeout: opts.Timeout,
		limiter: limiter,
		breaker: NewCircuitBreaker(cbCfg),
		auditor: opts.Auditor,
		logger:  logger.Named("llm-guard"),
	}
}

// GenerateResponse applies the guards around the inner call. A call that
// exceeds the timeout fails with a retryable ErrorTypeTimeout.
func (c *GuardedClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	opts GenerateOptions,
) (*GenerateResponseResult, error) {
	phase := PhaseFromContext(ctx)
	model := c.inner.GetModel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewErrorWithContext(ErrorTypeRateLimited, "rate limiter wait aborted", false, err, model, c.inner.GetEndpoint(), 0)
		}
	}

	if ok, err := c.breaker.Allow(); !ok {
		metrics.RecordLLMCall(model, phase, "circuit_open", 0, 0, 0)
		return nil, NewErrorWithContext(ErrorTypeCircuitOpen, "provider unavailable", false, err, model, c.inner.GetEndpoint(), 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.inner.GenerateResponse(callCtx, prompt, systemMessage, opts)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewErrorWithContext(ErrorTypeTimeout, "completion timed out after "+c.timeout.String(), true, err, model, c.inner.GetEndpoint(), 0)
		}
		c.breaker.RecordFailure()
		metrics.RecordLLMCall(model, phase, string(GetErrorType(err)), elapsed, 0, 0)
		c.logger.Warn("Completion call failed",
			zap.String("phase", phase),
			zap.Duration("elapsed", elapsed),
			zap.String("circuit", c.breaker.State().String()),
			zap.String("error", logging.SanitizeError(err)))
		if GetErrorType(err) == ErrorTypeAuth {
			c.reportRejectedCredentials(ctx, phase, err)
		}
		return nil, err
	}

	c.breaker.RecordSuccess()
	metrics.RecordLLMCall(model, phase, "success", elapsed, result.PromptTokens, result.CompletionTokens)
	return result, nil
}

func (c *GuardedClient) reportRejectedCredentials(ctx context.Context, phase string, err error) {
	var userID string
	if claims, ok := auth.GetClaims(ctx); ok {
		userID = claims.Subject
	}
	c.auditor.LogCredentialRejected(userID, audit.CredentialRejectedDetails{
		Model:    c.inner.GetModel(),
		Endpoint: c.inner.GetEndpoint(),
		Phase:    phase,
		Reason:   err.Error(),
	})
}

// Breaker exposes the circuit breaker for health reporting.
func (c *GuardedClient) Breaker() *CircuitBreaker {
	return c.breaker
}

// GetModel returns the inner client's model.
func (c *GuardedClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the inner client's endpoint.
func (c *GuardedClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}

var _ LLMClient = (*GuardedClient)(nil)

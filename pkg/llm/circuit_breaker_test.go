package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock, *[]CircuitState) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []CircuitState
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:     threshold,
		ResetAfter:    30 * time.Second,
		OnStateChange: func(s CircuitState) { transitions = append(transitions, s) },
	})
	cb.now = clock.now
	return cb, clock, &transitions
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb, _, _ := newTestBreaker(5)

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.ConsecutiveFailures())

	allowed, err := cb.Allow()
	assert.True(t, allowed)
	assert.NoError(t, err)
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb, _, transitions := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, []CircuitState{CircuitOpen}, *transitions)

	allowed, err := cb.Allow()
	assert.False(t, allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _, _ := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 1, cb.ConsecutiveFailures())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	t.Run("success closes the circuit", func(t *testing.T) {
		cb, clock, transitions := newTestBreaker(1)
		cb.RecordFailure()
		clock.advance(31 * time.Second)

		allowed, err := cb.Allow()
		require.True(t, allowed)
		require.NoError(t, err)
		assert.Equal(t, CircuitHalfOpen, cb.State())

		second, err := cb.Allow()
		assert.False(t, second, "only one probe at a time")
		assert.Error(t, err)

		cb.RecordSuccess()
		assert.Equal(t, CircuitClosed, cb.State())
		assert.Equal(t, []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitClosed}, *transitions)
	})

	t.Run("failure reopens the circuit", func(t *testing.T) {
		cb, clock, _ := newTestBreaker(2)
		cb.RecordFailure()
		cb.RecordFailure()
		clock.advance(31 * time.Second)

		allowed, _ := cb.Allow()
		require.True(t, allowed)
		cb.RecordFailure()

		assert.Equal(t, CircuitOpen, cb.State())
		allowed, _ = cb.Allow()
		assert.False(t, allowed)
	})
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _, _ := newTestBreaker(1)
	cb.RecordFailure()
	cb.Reset()

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Zero(t, cb.ConsecutiveFailures())
}

func TestCircuitBreaker_ZeroThresholdUsesDefault(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{ResetAfter: time.Second})
	for range 4 {
		cb.RecordFailure()
	}
	assert.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 10, ResetAfter: time.Millisecond})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				_, _ = cb.Allow()
				if j%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
				_ = cb.State()
			}
		}()
	}
	wg.Wait()
}

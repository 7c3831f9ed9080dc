package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker("confluence", domain.CircuitBreakerConfig{
		FailureThreshold: 5,
		CooldownPeriod:   time.Minute,
	}, WithBreakerClock(clock.Now))
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b := newTestBreaker(newFakeClock())

	for i := 0; i < 4; i++ {
		assert.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, domain.CircuitClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, domain.CircuitOpen, b.State())
	assert.False(t, b.Allow())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	b := newTestBreaker(newFakeClock())

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, domain.CircuitClosed, b.State())
}

func TestCircuitBreaker_HalfOpenSingleTrial(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, clock.Now().Add(time.Minute), b.OpenUntil())

	clock.Advance(59 * time.Second)
	assert.False(t, b.Allow())

	clock.Advance(time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, domain.CircuitHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one trial in half-open")

	b.RecordSuccess()
	assert.Equal(t, domain.CircuitClosed, b.State())
	assert.True(t, b.Allow())
	assert.True(t, b.OpenUntil().IsZero())
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	clock.Advance(time.Minute)
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, domain.CircuitOpen, b.State())
	assert.False(t, b.Allow())

	clock.Advance(30 * time.Second)
	assert.False(t, b.Allow(), "cooldown restarts from the failed trial")
	clock.Advance(30 * time.Second)
	assert.True(t, b.Allow())
}

func TestCircuitBreaker_AbandonReleasesTrial(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(time.Minute)

	assert.True(t, b.Allow())
	b.Abandon()
	assert.True(t, b.Allow())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := newFakeClock()
	var transitions []domain.CircuitState
	b := NewCircuitBreaker("jira", domain.CircuitBreakerConfig{FailureThreshold: 1, CooldownPeriod: time.Second},
		WithBreakerClock(clock.Now),
		WithStateChange(func(name string, from, to domain.CircuitState) {
			assert.Equal(t, "jira", name)
			transitions = append(transitions, to)
		}))

	b.RecordFailure()
	clock.Advance(time.Second)
	b.Allow()
	b.RecordSuccess()

	assert.Equal(t, []domain.CircuitState{domain.CircuitOpen, domain.CircuitHalfOpen, domain.CircuitClosed}, transitions)
	assert.Equal(t, "jira", b.Name())
}

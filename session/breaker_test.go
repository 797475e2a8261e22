package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := newMockClock(time.Now())
	policy := CircuitBreakerPolicy{Enabled: true, FailureThreshold: 3, ResetTimeout: 10 * time.Second}
	cb := newCircuitBreaker(policy, clock)

	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		ran, err := cb.Execute(failing)
		assert.True(t, ran)
		assert.Error(t, err)
	}
	assert.Equal(t, circuitOpen, cb.State())

	// Next call is failed fast without invoking fn.
	ran, err := cb.Execute(func() error {
		t.Fatal("fn must not run while breaker is open")
		return nil
	})
	assert.False(t, ran)
	assert.NoError(t, err)
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	clock := newMockClock(time.Now())
	policy := CircuitBreakerPolicy{Enabled: true, FailureThreshold: 1, ResetTimeout: 5 * time.Second}
	cb := newCircuitBreaker(policy, clock)

	_, err := cb.Execute(func() error { return errors.New("boom") })
	require.Error(t, err)
	assert.Equal(t, circuitOpen, cb.State())

	clock.Advance(6 * time.Second)

	ran, err := cb.Execute(func() error { return nil })
	assert.True(t, ran)
	assert.NoError(t, err)
	assert.Equal(t, circuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newMockClock(time.Now())
	policy := CircuitBreakerPolicy{Enabled: true, FailureThreshold: 1, ResetTimeout: time.Second}
	cb := newCircuitBreaker(policy, clock)

	_, _ = cb.Execute(func() error { return errors.New("boom") })
	clock.Advance(2 * time.Second)
	_, err := cb.Execute(func() error { return errors.New("still broken") })
	assert.Error(t, err)
	assert.Equal(t, circuitOpen, cb.State())
}

func TestCircuitBreaker_DisabledAlwaysRuns(t *testing.T) {
	cb := newCircuitBreaker(CircuitBreakerPolicy{Enabled: false}, newMockClock(time.Now()))
	calls := 0
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() error {
			calls++
			return errors.New("boom")
		})
	}
	assert.Equal(t, 5, calls)
}

package session

import (
	"sync"
	"time"
)

// circuitState is the state of the Resource Sampler's circuit breaker.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreakerPolicy configures the Resource Sampler's circuit breaker.
// This guards only the sampler's exec round trips — it never gates the
// reconnect state machine or PTY I/O, which follow the fixed reconnect
// schedule regardless of sampling health.
type CircuitBreakerPolicy struct {
	Enabled          bool
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultCircuitBreakerPolicy is tuned for a 5-second sampling cadence:
// five consecutive failed ticks (25s) before failing fast for 30s.
func DefaultCircuitBreakerPolicy() CircuitBreakerPolicy {
	return CircuitBreakerPolicy{
		Enabled:          true,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// circuitBreaker implements the circuit breaker pattern around a fallible
// operation: Closed / Open / HalfOpen state machine, Execute wrapper,
// applied here to resource-sampling exec failures.
type circuitBreaker struct {
	mu sync.Mutex

	state       circuitState
	failures    int
	lastFailure time.Time

	threshold int
	timeout   time.Duration
	enabled   bool
	clock     Clock
}

func newCircuitBreaker(policy CircuitBreakerPolicy, clock Clock) *circuitBreaker {
	if clock == nil {
		clock = realClock{}
	}
	return &circuitBreaker{
		state:     circuitClosed,
		threshold: policy.FailureThreshold,
		timeout:   policy.ResetTimeout,
		enabled:   policy.Enabled,
		clock:     clock,
	}
}

// Execute runs fn unless the breaker is open, in which case it returns
// false immediately without calling fn. The bool result reports whether fn
// ran at all.
func (cb *circuitBreaker) Execute(fn func() error) (ran bool, err error) {
	if !cb.enabled {
		return true, fn()
	}

	if !cb.allow() {
		return false, nil
	}

	err = fn()
	cb.record(err)
	return true, err
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == circuitOpen {
		if cb.clock.Now().Sub(cb.lastFailure) > cb.timeout {
			cb.state = circuitHalfOpen
			return true
		}
		return false
	}
	return true
}

func (cb *circuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == circuitHalfOpen {
			cb.state = circuitClosed
		}
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = cb.clock.Now()

	if cb.state == circuitHalfOpen {
		cb.state = circuitOpen
		return
	}
	if cb.state == circuitClosed && cb.failures >= cb.threshold {
		cb.state = circuitOpen
	}
}

func (cb *circuitBreaker) State() circuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

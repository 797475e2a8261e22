package session

import "log/slog"

// Option configures optional, non-required aspects of a spawned session
// using the functional-options pattern.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger        *slog.Logger
	breakerPolicy CircuitBreakerPolicy
	clock         Clock
	cmdBufferSize int
	connect       func(cfg Config, cols, rows uint32, runStartupCommand bool) (secureTransport, error)
}

func defaultSessionOptions() *sessionOptions {
	return &sessionOptions{
		breakerPolicy: DefaultCircuitBreakerPolicy(),
		clock:         realClock{},
		cmdBufferSize: 32,
		connect:       connectShell,
	}
}

// withConnectFunc substitutes the transport dial, for driving the worker
// state machine in tests without a real network. Unexported: only this
// package's own tests may reach for it.
func withConnectFunc(fn func(cfg Config, cols, rows uint32, runStartupCommand bool) (secureTransport, error)) Option {
	return func(o *sessionOptions) { o.connect = fn }
}

// WithLogger attaches a structured logger; when omitted the session falls
// back to the SSHFLEET_LOG_LEVEL/SSHFLEET_DEBUG environment lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) { o.logger = logger }
}

// WithCircuitBreakerPolicy overrides the Resource Sampler's circuit
// breaker policy.
func WithCircuitBreakerPolicy(policy CircuitBreakerPolicy) Option {
	return func(o *sessionOptions) { o.breakerPolicy = policy }
}

// WithClock injects a Clock, for deterministic tests of reconnect/breaker
// timing.
func WithClock(clock Clock) Option {
	return func(o *sessionOptions) { o.clock = clock }
}

// WithCommandBuffer sizes the per-session command inbox.
func WithCommandBuffer(n int) Option {
	return func(o *sessionOptions) {
		if n > 0 {
			o.cmdBufferSize = n
		}
	}
}

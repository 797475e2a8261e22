package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), scheduleDelay(1))
	assert.Equal(t, 5*time.Second, scheduleDelay(2))
	assert.Equal(t, 10*time.Second, scheduleDelay(3))
	// out of range attempts clamp to the last entry
	assert.Equal(t, 10*time.Second, scheduleDelay(4))
	assert.Equal(t, 10*time.Second, scheduleDelay(99))
}

func TestSessionJitter_DeterministicPerID(t *testing.T) {
	a := sessionJitter("fleet-session-1")
	b := sessionJitter("fleet-session-1")
	assert.Equal(t, a, b, "jitter must be a pure function of the session id")
	assert.GreaterOrEqual(t, a, time.Duration(0))
	assert.Less(t, a, 400*time.Millisecond)
}

func TestSessionJitter_VariesAcrossIDs(t *testing.T) {
	a := sessionJitter("session-a")
	b := sessionJitter("session-b-longer-name")
	assert.NotEqual(t, a, b)
}

func TestNextAttemptAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jitter := 137 * time.Millisecond
	got := nextAttemptAt(start, 2, jitter)
	want := start.Add(5 * time.Second).Add(jitter)
	assert.True(t, got.Equal(want))
}

func TestIsAuthFatal(t *testing.T) {
	cases := map[string]bool{
		"ssh: handshake failed: unable to authenticate": true,
		"key auth requires key_path":                    true,
		"password auth requires password":               true,
		"not authenticated":                             true,
		"dial tcp 10.0.0.1:22: connect: connection refused": false,
		"context deadline exceeded":                         false,
	}
	for msg, want := range cases {
		assert.Equal(t, want, isAuthFatal(msg), msg)
	}
}

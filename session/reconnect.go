package session

import (
	"strings"
	"time"
)

const defaultMaxRetries uint32 = 3

// retrySchedule holds the delay, by attempt number (1-indexed), before a
// reconnect attempt fires. Out-of-range attempt numbers use the last entry.
// This is a fixed schedule, not exponential backoff: a synchronous
// per-session worker with a small, bounded retry budget doesn't need the
// growth curve a long-lived async health-check loop would.
var retrySchedule = [...]time.Duration{0, 5 * time.Second, 10 * time.Second}

func scheduleDelay(attempt uint32) time.Duration {
	idx := int(attempt) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retrySchedule) {
		idx = len(retrySchedule) - 1
	}
	return retrySchedule[idx]
}

// sessionJitter is a per-session constant offset in [0, 400)ms derived from
// the byte sum of the session id, so that retries across a fleet of
// simultaneously-dropped sessions don't all land in the same instant. It is
// deliberately deterministic, not random: a fixed function of the id keeps
// the reconnect delay reproducible in tests, which a crypto/rand-seeded
// jitter cannot offer.
func sessionJitter(id string) time.Duration {
	var sum uint64
	for i := 0; i < len(id); i++ {
		sum += uint64(id[i])
	}
	return time.Duration(sum%400) * time.Millisecond
}

// nextAttemptAt computes the absolute wall-clock deadline for retry attempt
// given when the disconnect was observed.
func nextAttemptAt(disconnectStarted time.Time, attempt uint32, jitter time.Duration) time.Time {
	return disconnectStarted.Add(scheduleDelay(attempt)).Add(jitter)
}

// authFatalSubstrings classifies an error message as auth-fatal by
// substring match — a pragmatic fallback given golang.org/x/crypto/ssh's
// opaque auth errors, which don't expose a typed credential-rejection
// error distinct from other handshake failures.
var authFatalSubstrings = []string{
	"auth",
	"not authenticated",
	"key auth requires",
	"password auth requires",
}

func isAuthFatal(msg string) bool {
	lower := strings.ToLower(msg)
	for _, s := range authFatalSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

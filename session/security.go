package session

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Security event types, subtypes, outcomes and severities, following NIST
// SP 800-92 guidance on log management, narrowed to the events a session
// lifecycle actually produces (no command-execution events: the core never
// knows what's typed into the PTY, only that bytes were written).
const (
	EventAuthentication = "authentication"
	EventConnection     = "connection"
	EventReconnection   = "reconnection"
	EventSession        = "session"
)

const (
	SubtypeAuthAttempt = "attempt"
	SubtypeAuthSuccess = "success"
	SubtypeAuthFailure = "failure"

	SubtypeConnEstablished = "established"
	SubtypeConnClosed      = "closed"
	SubtypeConnFailed      = "failed"

	SubtypeReconnAttempt   = "attempt"
	SubtypeReconnSuccess   = "success"
	SubtypeReconnExhausted = "exhausted"

	SubtypeSessionOpened = "opened"
	SubtypeSessionClosed = "closed"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// SecurityEvent is one structured audit record.
type SecurityEvent struct {
	Timestamp     string         `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Subtype       string         `json:"subtype,omitempty"`
	Component     string         `json:"component"`
	CorrelationID string         `json:"correlation_id"`
	User          string         `json:"user,omitempty"`
	Target        string         `json:"target"`
	Outcome       string         `json:"outcome"`
	Severity      string         `json:"severity"`
	Details       map[string]any `json:"details,omitempty"`
}

func newSecurityEvent(eventType, subtype, correlationID, target, outcome, severity string) *SecurityEvent {
	return &SecurityEvent{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		EventType:     eventType,
		Subtype:       subtype,
		Component:     "sshfleet/session",
		CorrelationID: correlationID,
		Target:        target,
		Outcome:       outcome,
		Severity:      severity,
		Details:       make(map[string]any),
	}
}

func (e *SecurityEvent) withUser(user string) *SecurityEvent {
	e.User = user
	return e
}

func (e *SecurityEvent) withDetail(key string, value any) *SecurityEvent {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *SecurityEvent) log(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logFunc := logger.Info
	switch e.Severity {
	case SeverityError:
		logFunc = logger.Error
	case SeverityWarning:
		logFunc = logger.Warn
	}
	logFunc("security_event",
		"event_type", e.EventType,
		"subtype", e.Subtype,
		"correlation_id", e.CorrelationID,
		"user", e.User,
		"target", e.Target,
		"outcome", e.Outcome,
		"severity", e.Severity,
		"details", e.Details,
	)
}

// JSON renders the event for external audit pipelines.
func (e *SecurityEvent) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SecurityLogger emits one correlated audit record per authentication,
// connection, reconnection, and session lifecycle transition. It is
// parallel to, not a replacement for, the Event Sink: the sink is for the
// host application's UI, this is an operator's audit trail.
type SecurityLogger struct {
	logger        *slog.Logger
	correlationID string
	user          string
	target        string
}

// NewSecurityLogger creates a logger with a fresh correlation id.
func NewSecurityLogger(logger *slog.Logger, user, target string) *SecurityLogger {
	return &SecurityLogger{
		logger:        logger,
		correlationID: uuid.NewString(),
		user:          user,
		target:        target,
	}
}

func (sl *SecurityLogger) CorrelationID() string { return sl.correlationID }

func (sl *SecurityLogger) LogAuthentication(subtype, outcome, severity string, details map[string]any) {
	sl.logEvent(EventAuthentication, subtype, outcome, severity, details)
}

func (sl *SecurityLogger) LogConnection(subtype, outcome, severity string, details map[string]any) {
	sl.logEvent(EventConnection, subtype, outcome, severity, details)
}

func (sl *SecurityLogger) LogReconnection(subtype, outcome, severity string, details map[string]any) {
	sl.logEvent(EventReconnection, subtype, outcome, severity, details)
}

func (sl *SecurityLogger) LogSession(subtype, outcome, severity string, details map[string]any) {
	sl.logEvent(EventSession, subtype, outcome, severity, details)
}

func (sl *SecurityLogger) logEvent(eventType, subtype, outcome, severity string, details map[string]any) {
	event := newSecurityEvent(eventType, subtype, sl.correlationID, sl.target, outcome, severity).
		withUser(sl.user)
	for k, v := range details {
		event.withDetail(k, v)
	}
	event.log(sl.logger)
}

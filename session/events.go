package session

// EventSink is the capability the core depends on to publish named events;
// it is the only contract the host application's event bus/GUI must satisfy.
// Delivery is fire-and-forget: the core never learns whether a payload
// reached a consumer. A sink cannot propagate delivery failures back across
// the session boundary without breaking the worker's isolation from its
// consumers.
type EventSink interface {
	Emit(name string, payload any)
}

// Event stream name suffixes, one set per session id.
const (
	statusEventPrefix   = "session-status-"
	outputEventPrefix   = "terminal-output-"
	resourceEventPrefix = "resource-update-"
)

func statusEventName(id string) string   { return statusEventPrefix + id }
func outputEventName(id string) string   { return outputEventPrefix + id }
func resourceEventName(id string) string { return resourceEventPrefix + id }

// ChannelEventSink is the default EventSink: all named streams share one
// buffered channel, and a send that would block is dropped rather than
// stalling the worker, using a select with a default case so a slow
// consumer never backs up into the session's own goroutine. Because the
// buffer is shared, a burst on one stream can cause events of the other
// streams to be dropped.
type ChannelEventSink struct {
	events chan NamedEvent
}

// NamedEvent pairs an event stream name with its payload, as delivered by
// ChannelEventSink.Events().
type NamedEvent struct {
	Name    string
	Payload any
}

// NewChannelEventSink creates a ChannelEventSink with the given channel
// capacity. A capacity of 0 falls back to a sensible default.
func NewChannelEventSink(capacity int) *ChannelEventSink {
	if capacity <= 0 {
		capacity = 256
	}
	return &ChannelEventSink{events: make(chan NamedEvent, capacity)}
}

// Emit implements EventSink. It never blocks: if the buffer is full the
// event is silently dropped, per the fire-and-forget contract.
func (s *ChannelEventSink) Emit(name string, payload any) {
	select {
	case s.events <- NamedEvent{Name: name, Payload: payload}:
	default:
	}
}

// Events returns the receive-only channel consumers drain at their own
// pace.
func (s *ChannelEventSink) Events() <-chan NamedEvent {
	return s.events
}

// Close closes the underlying channel. Callers must stop calling Emit
// (directly or via an active session) before calling Close.
func (s *ChannelEventSink) Close() {
	close(s.events)
}

// nullEventSink discards every event; used when a caller does not supply a
// sink, so the worker never has to nil-check before emitting.
type nullEventSink struct{}

func (nullEventSink) Emit(string, any) {}

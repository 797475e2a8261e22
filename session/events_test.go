package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelEventSink_EmitAndDrain(t *testing.T) {
	sink := NewChannelEventSink(2)
	sink.Emit("session-status-a", connectedStatus())
	sink.Emit("terminal-output-a", []byte("hi"))

	ev1 := <-sink.Events()
	ev2 := <-sink.Events()
	assert.Equal(t, "session-status-a", ev1.Name)
	assert.Equal(t, "terminal-output-a", ev2.Name)
}

func TestChannelEventSink_DropsOnFull(t *testing.T) {
	sink := NewChannelEventSink(1)
	sink.Emit("first", 1)
	sink.Emit("second", 2) // dropped, buffer already full

	ev := <-sink.Events()
	assert.Equal(t, "first", ev.Name)

	select {
	case <-sink.Events():
		t.Fatal("expected no further events, overflow must be dropped not queued")
	default:
	}
}

func TestNullEventSink_NeverPanics(t *testing.T) {
	var s EventSink = nullEventSink{}
	s.Emit("anything", nil)
}

func TestEventStreamNames(t *testing.T) {
	assert.Equal(t, "session-status-abc", statusEventName("abc"))
	assert.Equal(t, "terminal-output-abc", outputEventName("abc"))
	assert.Equal(t, "resource-update-abc", resourceEventName("abc"))
}

package session

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a secureTransport double driven entirely in-process, so
// the worker state machine can be exercised deterministically without a
// real SSH server.
type fakeTransport struct {
	outR   *io.PipeReader
	outW   *io.PipeWriter
	writes chan []byte
}

func newFakeTransport() *fakeTransport {
	r, w := io.Pipe()
	return &fakeTransport{outR: r, outW: w, writes: make(chan []byte, 16)}
}

func (f *fakeTransport) Write(data []byte) (int, error) {
	cp := append([]byte(nil), data...)
	select {
	case f.writes <- cp:
	default:
	}
	return len(data), nil
}
func (f *fakeTransport) OutputReader() io.Reader  { return f.outR }
func (f *fakeTransport) Resize(uint32, uint32) error { return nil }
func (f *fakeTransport) ListDirectory(path string) ([]FileEntry, error) {
	return []FileEntry{{Path: path, Name: "a"}}, nil
}
func (f *fakeTransport) ReadFile(path string, _ uint64) (ReadFileResult, error) {
	return ReadFileResult{Path: path, Bytes: []byte("data")}, nil
}
func (f *fakeTransport) SampleResources(string, func() time.Time) (ResourceSnapshot, error) {
	return ResourceSnapshot{}, nil
}
func (f *fakeTransport) Close()            { f.outW.Close() }
func (f *fakeTransport) dropConnection()   { f.outW.CloseWithError(io.EOF) }

func nextStatus(t *testing.T, sink *ChannelEventSink, timeout time.Duration) Status {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sink.Events():
			if st, ok := ev.Payload.(Status); ok {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for a status event")
		}
	}
}

func TestSession_HappyPathThenShutdown(t *testing.T) {
	connectFn := func(Config, uint32, uint32, bool) (secureTransport, error) {
		return newFakeTransport(), nil
	}

	sink := NewChannelEventSink(64)
	h, err := Spawn(Config{ID: "t1", Host: "h", User: "u", Auth: AuthKey, KeyPath: "/k"}, sink,
		withConnectFunc(connectFn))
	require.NoError(t, err)

	assert.Equal(t, StatusConnecting, nextStatus(t, sink, time.Second).Kind)
	assert.Equal(t, StatusConnected, nextStatus(t, sink, time.Second).Kind)

	h.Shutdown()
	assert.Equal(t, StatusDisconnected, nextStatus(t, sink, time.Second).Kind)
}

func TestSession_AuthFatalThenManualReconnect(t *testing.T) {
	var calls int32
	connectFn := func(Config, uint32, uint32, bool) (secureTransport, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return nil, fmt.Errorf("%w: key auth requires key_path", ErrAuth)
		}
		return newFakeTransport(), nil
	}

	sink := NewChannelEventSink(64)
	h, err := Spawn(Config{ID: "t2", Host: "h", User: "u", Auth: AuthKey, KeyPath: "/missing"}, sink,
		withConnectFunc(connectFn))
	require.NoError(t, err)

	assert.Equal(t, StatusConnecting, nextStatus(t, sink, time.Second).Kind)
	assert.Equal(t, StatusError, nextStatus(t, sink, time.Second).Kind)
	assert.Equal(t, StatusReconnectFailed, nextStatus(t, sink, time.Second).Kind)

	require.NoError(t, h.ReconnectNow())

	st := nextStatus(t, sink, time.Second)
	assert.Equal(t, StatusReconnecting, st.Kind)
	assert.Equal(t, StatusConnected, nextStatus(t, sink, time.Second).Kind)

	h.Shutdown()
	assert.Equal(t, StatusDisconnected, nextStatus(t, sink, time.Second).Kind)
}

// TestSession_EmptyKeyPathIsRuntimeNotConfigError exercises auth=key("") the
// way the worker actually reaches connectShell: Validate must accept the
// config (no key material is required upstream of a connect attempt), and
// the missing key_path then surfaces as Connecting -> Error ->
// ReconnectFailed from inside the real connect path, not a Spawn error.
func TestSession_EmptyKeyPathIsRuntimeNotConfigError(t *testing.T) {
	cfg := Config{ID: "t5", Host: "h", User: "u", Auth: AuthKey, KeyPath: ""}
	require.NoError(t, cfg.Validate())

	sink := NewChannelEventSink(64)
	h, err := Spawn(cfg, sink) // default connect: the real connectShell, no fake
	require.NoError(t, err)

	assert.Equal(t, StatusConnecting, nextStatus(t, sink, time.Second).Kind)
	errSt := nextStatus(t, sink, time.Second)
	assert.Equal(t, StatusError, errSt.Kind)
	assert.Contains(t, errSt.Message, "key auth requires key_path")
	assert.Equal(t, StatusReconnectFailed, nextStatus(t, sink, time.Second).Kind)

	h.Shutdown()
	assert.Equal(t, StatusDisconnected, nextStatus(t, sink, time.Second).Kind)
}

func TestSession_MidSessionDropReconnects(t *testing.T) {
	transports := make(chan *fakeTransport, 4)
	connectFn := func(Config, uint32, uint32, bool) (secureTransport, error) {
		ft := newFakeTransport()
		transports <- ft
		return ft, nil
	}

	sink := NewChannelEventSink(64)
	h, err := Spawn(Config{ID: "t3", Host: "h", User: "u", Auth: AuthKey, KeyPath: "/k"}, sink,
		withConnectFunc(connectFn))
	require.NoError(t, err)

	assert.Equal(t, StatusConnecting, nextStatus(t, sink, time.Second).Kind)
	assert.Equal(t, StatusConnected, nextStatus(t, sink, time.Second).Kind)

	first := <-transports
	first.dropConnection()

	st := nextStatus(t, sink, 2*time.Second)
	assert.Equal(t, StatusReconnecting, st.Kind)
	assert.Equal(t, uint32(1), st.Attempt)
	assert.Equal(t, StatusConnected, nextStatus(t, sink, 2*time.Second).Kind)

	h.Shutdown()
	assert.Equal(t, StatusDisconnected, nextStatus(t, sink, time.Second).Kind)
}

func TestSession_SendInputAfterShutdownFails(t *testing.T) {
	connectFn := func(Config, uint32, uint32, bool) (secureTransport, error) {
		return newFakeTransport(), nil
	}
	sink := NewChannelEventSink(64)
	h, err := Spawn(Config{ID: "t4", Host: "h", User: "u", Auth: AuthKey, KeyPath: "/k"}, sink,
		withConnectFunc(connectFn))
	require.NoError(t, err)

	nextStatus(t, sink, time.Second) // Connecting
	nextStatus(t, sink, time.Second) // Connected
	h.Shutdown()

	assert.ErrorIs(t, h.SendInput([]byte("x")), ErrSend)
}

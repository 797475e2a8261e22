package fleet

import (
	"testing"
	"time"

	"github.com/smnsjas/sshfleet/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Connect runs the real connect path in a background goroutine. These
// configs name a key file that does not exist, so each connect attempt
// fails while loading the key, before any dial, and never reaches the
// network. The handle itself is returned synchronously regardless of how
// that connect attempt ends.
func unreachableConfig(id string) session.Config {
	return session.Config{
		ID:   id,
		Host: "127.0.0.1",
		Port: 1,
		User: "nobody",
		Auth: session.AuthKey,
		KeyPath: "/nonexistent/key",
	}
}

func TestManager_ConnectAndDisconnect(t *testing.T) {
	m := NewManager()
	id, err := m.Connect(unreachableConfig("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	active := m.ActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)

	require.NoError(t, m.Disconnect(id))
	assert.Empty(t, m.ActiveSessions())
}

func TestManager_DispatchToMissingSessionFails(t *testing.T) {
	m := NewManager()
	assert.ErrorIs(t, m.SendInput("missing", []byte("x")), ErrSessionNotFound)
	assert.ErrorIs(t, m.Resize("missing", 80, 24), ErrSessionNotFound)
	assert.ErrorIs(t, m.Reconnect("missing"), ErrSessionNotFound)
	_, err := m.ListDirectory("missing", "/")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.ReadFile("missing", "/f", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Disconnect("missing"), ErrSessionNotFound)
}

func TestManager_ConnectAllReportsPerIndexResults(t *testing.T) {
	m := NewManager()
	configs := []session.Config{
		unreachableConfig("x1"),
		{ID: "", Host: "h", User: "u", Auth: session.AuthKey, KeyPath: "/k"}, // invalid: empty ID
		unreachableConfig("x3"),
	}

	results := m.ConnectAll(configs, nil)
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[0].Index)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "x1", results[0].ID)

	assert.Equal(t, 1, results[1].Index)
	assert.Error(t, results[1].Err)

	assert.Equal(t, 2, results[2].Index)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "x3", results[2].ID)

	assert.Len(t, m.ActiveSessions(), 2)
	m.DisconnectAll()
	assert.Empty(t, m.ActiveSessions())
}

func TestManager_DisconnectAllIsIdempotent(t *testing.T) {
	m := NewManager()
	_, err := m.Connect(unreachableConfig("a"), nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.DisconnectAll()
		m.DisconnectAll() // second call on an already-drained map must be a no-op
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("DisconnectAll did not return")
	}
	assert.Empty(t, m.ActiveSessions())
}

// Package fleet implements the fleet manager: a keyed collection of
// session.Handle values, parallel connect, and dispatch of per-session
// commands by id.
package fleet

import (
	"fmt"
	"sync"

	"github.com/smnsjas/sshfleet/session"
)

// Manager owns a mapping from session id to session.Handle, guarded by a
// lock held only for map-level operations — never across I/O, so a slow
// connect or shutdown never blocks an unrelated session's dispatch.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session.Handle
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*session.Handle)}
}

// Connect spawns one session and registers it under its config's id.
func (m *Manager) Connect(cfg session.Config, sink session.EventSink, opts ...session.Option) (string, error) {
	h, err := session.Spawn(cfg, sink, opts...)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.sessions[h.ID] = h
	m.mu.Unlock()
	return h.ID, nil
}

// ConnectResult is one config's outcome from ConnectAll, indexed back to
// its position in the input slice so a caller can correlate failures with
// the targets that produced them.
type ConnectResult struct {
	Index int
	ID    string
	Err   error
}

// ConnectAll spawns every config concurrently — one goroutine per config,
// joined before returning — and registers every successful spawn under the
// map lock afterward. A panicking spawn goroutine is recovered and reported
// as an error for its index rather than taking down the others.
func (m *Manager) ConnectAll(configs []session.Config, sink session.EventSink, opts ...session.Option) []ConnectResult {
	type outcome struct {
		handle *session.Handle
		err    error
	}
	raw := make([]outcome, len(configs))

	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func(i int, cfg session.Config) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					raw[i] = outcome{err: fmt.Errorf("session worker panicked: %v", r)}
				}
			}()
			h, err := session.Spawn(cfg, sink, opts...)
			raw[i] = outcome{handle: h, err: err}
		}(i, cfg)
	}
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]ConnectResult, len(configs))
	for i, o := range raw {
		if o.err != nil {
			results[i] = ConnectResult{Index: i, Err: o.err}
			continue
		}
		m.sessions[o.handle.ID] = o.handle
		results[i] = ConnectResult{Index: i, ID: o.handle.ID}
	}
	return results
}

func (m *Manager) lookup(id string) (*session.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// SendInput dispatches raw bytes to the addressed session.
func (m *Manager) SendInput(id string, data []byte) error {
	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	return h.SendInput(data)
}

// Resize dispatches a PTY resize to the addressed session.
func (m *Manager) Resize(id string, cols, rows uint32) error {
	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	return h.Resize(cols, rows)
}

// Reconnect collapses a pending reconnect wait on the addressed session.
func (m *Manager) Reconnect(id string) error {
	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	return h.ReconnectNow()
}

// ListDirectory dispatches a directory listing to the addressed session.
func (m *Manager) ListDirectory(id, path string) ([]session.FileEntry, error) {
	h, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return h.ListDirectory(path)
}

// ReadFile dispatches a bounded file read to the addressed session.
func (m *Manager) ReadFile(id, path string, maxBytes *uint64) (session.ReadFileResult, error) {
	h, err := m.lookup(id)
	if err != nil {
		return session.ReadFileResult{}, err
	}
	return h.ReadFile(path, maxBytes)
}

// Disconnect removes and shuts down one session. Shutdown runs outside the
// map lock so a slow-to-exit worker never blocks other Manager callers.
func (m *Manager) Disconnect(id string) error {
	m.mu.Lock()
	h, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	h.Shutdown()
	return nil
}

// DisconnectAll drains the session map and shuts every handle down outside
// the lock: the map is emptied and the lock released before any worker is
// joined, so a slow shutdown never blocks a concurrent Manager call.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	all := make([]*session.Handle, 0, len(m.sessions))
	for _, h := range m.sessions {
		all = append(all, h)
	}
	m.sessions = make(map[string]*session.Handle)
	m.mu.Unlock()

	for _, h := range all {
		h.Shutdown()
	}
}

// ActiveSession is one entry of ActiveSessions' snapshot.
type ActiveSession struct {
	ID          string
	HostDisplay string
}

// ActiveSessions returns a point-in-time snapshot of every registered
// session id and its display string.
func (m *Manager) ActiveSessions() []ActiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActiveSession, 0, len(m.sessions))
	for id, h := range m.sessions {
		out = append(out, ActiveSession{ID: id, HostDisplay: h.HostDisplay})
	}
	return out
}

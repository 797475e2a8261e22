package session

import "errors"

// Sentinel errors for the secure-transport / state-machine error taxonomy.
// These support errors.Is/errors.As at call sites that need to distinguish
// kinds rather than parse messages.
var (
	// ErrTCPConnect signals DNS resolution or socket connect failure before handshake.
	ErrTCPConnect = errors.New("sshfleet: tcp connect failed")
	// ErrHandshake signals SSH protocol negotiation failure.
	ErrHandshake = errors.New("sshfleet: ssh handshake failed")
	// ErrAuth signals rejected or missing credentials.
	ErrAuth = errors.New("sshfleet: ssh authentication failed")
	// ErrChannel signals a channel open/read/write failure during steady state.
	ErrChannel = errors.New("sshfleet: ssh channel error")
	// ErrPty signals PTY allocation or resize failure.
	ErrPty = errors.New("sshfleet: pty error")
	// ErrSend signals inbox delivery to a worker that is already gone.
	ErrSend = errors.New("sshfleet: command send failed, worker gone")
	// ErrTimeout signals a reply channel deadline expired.
	ErrTimeout = errors.New("sshfleet: reply timed out")
	// ErrNotConnected is returned by SFTP commands serviced while disconnected/reconnecting.
	ErrNotConnected = errors.New("sshfleet: not connected")
)

// ConfigError wraps a Session Config validation failure (rejected before a
// worker is ever spawned).
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "sshfleet: invalid config field " + e.Field + ": " + e.Msg
}

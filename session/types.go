// Package session implements the per-session SSH connection engine: one
// worker goroutine per remote host driving the connect/auth/PTY/run/drop/
// reconnect lifecycle, SFTP inspection, and periodic resource sampling.
package session

import "fmt"

// AuthMethod selects how a session authenticates to the remote host.
type AuthMethod int

const (
	// AuthKey authenticates with a private key file.
	AuthKey AuthMethod = iota
	// AuthPassword authenticates with a plain-string password.
	AuthPassword
)

// FileEntry describes one directory entry returned by ListDirectory.
type FileEntry struct {
	Path       string
	Name       string
	IsDir      bool
	SizeBytes  uint64
	MtimeEpoch *uint64
}

// ReadFileResult is the outcome of a bounded remote file read.
type ReadFileResult struct {
	Path      string
	Bytes     []byte
	Truncated bool
}

// ResourceSnapshot is a best-effort CPU/RAM/disk sample. Any percentage may
// be nil when its parser failed; the snapshot is still emitted.
type ResourceSnapshot struct {
	CPUPercent  *float64
	RAMPercent  *float64
	DiskPercent *float64
	TSEpoch     uint64
	DiskPath    string
}

// Status is the tagged status emitted on the session-status stream.
type Status struct {
	Kind    StatusKind
	Attempt uint32 // set only for StatusReconnecting
	Max     uint32 // set only for StatusReconnecting
	Message string // set only for StatusError
}

// StatusKind enumerates the variants of Status.
type StatusKind int

const (
	StatusConnecting StatusKind = iota
	StatusConnected
	StatusReconnecting
	StatusReconnectFailed
	StatusDisconnected
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusReconnectFailed:
		return "reconnect_failed"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

func (s Status) String() string {
	switch s.Kind {
	case StatusReconnecting:
		return fmt.Sprintf("reconnecting{attempt=%d,max=%d}", s.Attempt, s.Max)
	case StatusError:
		return fmt.Sprintf("error(%s)", s.Message)
	default:
		return s.Kind.String()
	}
}

func connectingStatus() Status                  { return Status{Kind: StatusConnecting} }
func connectedStatus() Status                   { return Status{Kind: StatusConnected} }
func reconnectingStatus(attempt, max uint32) Status {
	return Status{Kind: StatusReconnecting, Attempt: attempt, Max: max}
}
func reconnectFailedStatus() Status { return Status{Kind: StatusReconnectFailed} }
func disconnectedStatus() Status    { return Status{Kind: StatusDisconnected} }
func errorStatus(format string, args ...interface{}) Status {
	return Status{Kind: StatusError, Message: fmt.Sprintf(format, args...)}
}

package session

// Command is the tagged variant consumed by the worker's command
// multiplexer; each concrete type below implements it and the worker
// dispatches via a type switch.
type Command interface {
	isCommand()
}

// WriteCommand delivers raw bytes to the PTY.
type WriteCommand struct{ Data []byte }

// ResizeCommand updates the remembered window size and, if connected,
// issues a PTY resize request.
type ResizeCommand struct{ Cols, Rows uint32 }

// ReconnectNowCommand collapses a pending reconnect wait to zero, or is
// ignored while already connected.
type ReconnectNowCommand struct{}

// ListDirCommand lists a remote directory; Reply is a single-shot channel
// owned by the caller.
type ListDirCommand struct {
	Path  string
	Reply chan<- listDirResult
}

// ReadFileCommand reads a bounded prefix of a remote file; Reply is a
// single-shot channel owned by the caller.
type ReadFileCommand struct {
	Path     string
	MaxBytes uint64
	HasMax   bool
	Reply    chan<- readFileReply
}

// ShutdownCommand requests cooperative termination.
type ShutdownCommand struct{}

func (WriteCommand) isCommand()        {}
func (ResizeCommand) isCommand()       {}
func (ReconnectNowCommand) isCommand() {}
func (ListDirCommand) isCommand()      {}
func (ReadFileCommand) isCommand()     {}
func (ShutdownCommand) isCommand()     {}

type listDirResult struct {
	entries []FileEntry
	err     error
}

type readFileReply struct {
	result ReadFileResult
	err    error
}

package session

import (
	"errors"
	"io"
	"time"
)

// Handle is the internal-facing owner of one session worker: a command
// sender and a join signal. Shutdown triggers cooperative shutdown via the
// command channel before the worker goroutine exits.
type Handle struct {
	ID          string
	HostDisplay string

	cmdTx chan Command
	done  chan struct{}
}

// Spawn validates cfg and starts one worker goroutine running the full
// connect/auth/PTY/run/drop/reconnect state machine.
func Spawn(cfg Config, sink EventSink, opts ...Option) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = nullEventSink{}
	}

	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(o)
	}

	h := &Handle{
		ID:          cfg.ID,
		HostDisplay: cfg.hostDisplay(),
		cmdTx:       make(chan Command, o.cmdBufferSize),
		done:        make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		runWorker(cfg, sink, o)(h.cmdTx)
	}()

	return h, nil
}

// send delivers cmd to the worker, failing with ErrSend if the worker has
// already exited rather than blocking forever on a dead channel.
func (h *Handle) send(cmd Command) error {
	select {
	case <-h.done:
		return ErrSend
	default:
	}
	select {
	case h.cmdTx <- cmd:
		return nil
	case <-h.done:
		return ErrSend
	}
}

// SendInput writes raw bytes to the PTY.
func (h *Handle) SendInput(data []byte) error {
	return h.send(WriteCommand{Data: data})
}

// Resize issues an in-band PTY resize request.
func (h *Handle) Resize(cols, rows uint32) error {
	return h.send(ResizeCommand{Cols: cols, Rows: rows})
}

// ReconnectNow collapses a pending reconnect wait to zero.
func (h *Handle) ReconnectNow() error {
	return h.send(ReconnectNowCommand{})
}

// ListDirectory lists a remote directory, with a 15s external deadline.
// Expiry surfaces ErrTimeout; the late reply, if it ever arrives, is
// discarded.
func (h *Handle) ListDirectory(path string) ([]FileEntry, error) {
	reply := make(chan listDirResult, 1)
	if err := h.send(ListDirCommand{Path: path, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.entries, r.err
	case <-time.After(15 * time.Second):
		return nil, ErrTimeout
	}
}

// ReadFile reads a bounded prefix of a remote file, with a 30s external
// deadline. maxBytes of nil uses DefaultMaxReadBytes.
func (h *Handle) ReadFile(path string, maxBytes *uint64) (ReadFileResult, error) {
	reply := make(chan readFileReply, 1)
	cmd := ReadFileCommand{Path: path, Reply: reply}
	if maxBytes != nil {
		cmd.MaxBytes = *maxBytes
		cmd.HasMax = true
	}
	if err := h.send(cmd); err != nil {
		return ReadFileResult{}, err
	}
	select {
	case r := <-reply:
		return r.result, r.err
	case <-time.After(30 * time.Second):
		return ReadFileResult{}, ErrTimeout
	}
}

// Shutdown requests cooperative termination and waits for the worker to
// exit. It is safe to call more than once.
func (h *Handle) Shutdown() {
	_ = h.send(ShutdownCommand{})
	<-h.done
}

// outputChunk is one unit delivered by the reader goroutine: either a
// slice of bytes read from the PTY, or the terminal error/EOF that ended
// the read loop.
type outputChunk struct {
	data []byte
	err  error
}

// readPTYLoop is the one-reader-goroutine half of a non-blocking-read
// pattern: ssh.Session has no non-blocking read mode, so a dedicated
// goroutine blocks on Read and forwards chunks through a buffered channel;
// the worker's connected loop drains it with a non-blocking receive,
// modeling "would-block" as "channel empty" and EOF as the channel closing.
func readPTYLoop(r io.Reader, out chan<- outputChunk) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- outputChunk{data: chunk}
		}
		if err != nil {
			out <- outputChunk{err: err}
			return
		}
	}
}

// waitUntil services the command inbox with the reduced reconnect-wait
// contract until deadline arrives, ReconnectNow collapses the wait, or
// Shutdown/channel-close ends the session. It blocks on the channel between
// events rather than polling, so a collapse or shutdown request is serviced
// immediately instead of on the next poll tick.
func waitUntil(deadline time.Time, cmdRx <-chan Command, cols, rows *uint32) (shutdown, collapse bool) {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
			return false, false
		case cmd, ok := <-cmdRx:
			timer.Stop()
			if !ok {
				return true, false
			}
			switch c := cmd.(type) {
			case ShutdownCommand:
				return true, false
			case ReconnectNowCommand:
				return false, true
			case ResizeCommand:
				*cols, *rows = c.Cols, c.Rows
			case ListDirCommand:
				c.Reply <- listDirResult{err: ErrNotConnected}
			case ReadFileCommand:
				c.Reply <- readFileReply{err: ErrNotConnected}
			}
		}
	}
}

// manualWait is waitUntil without a deadline: the ReconnectFailed substate
// services the same reduced contract indefinitely until ReconnectNow or
// Shutdown arrives.
func manualWait(cmdRx <-chan Command, cols, rows *uint32) (shutdown bool) {
	for cmd := range cmdRx {
		switch c := cmd.(type) {
		case ShutdownCommand:
			return true
		case ReconnectNowCommand:
			return false
		case ResizeCommand:
			*cols, *rows = c.Cols, c.Rows
		case ListDirCommand:
			c.Reply <- listDirResult{err: ErrNotConnected}
		case ReadFileCommand:
			c.Reply <- readFileReply{err: ErrNotConnected}
		}
	}
	return true // inbox closed
}

// runWorker returns the goroutine body closed over cfg/sink/opts; it takes
// the command channel separately so Spawn can launch it from inside the
// same goroutine it creates (keeps Handle construction and worker startup
// in one place for readability).
func runWorker(cfg Config, sink EventSink, o *sessionOptions) func(<-chan Command) {
	return func(cmdRx <-chan Command) {
		maxRetries := cfg.reconnectMaxRetries()
		jitter := sessionJitter(cfg.ID)
		logger := ensureLogger(o.logger)
		secLogger := NewSecurityLogger(logger, cfg.User, cfg.hostDisplay())
		breaker := newCircuitBreaker(o.breakerPolicy, o.clock)

		emitStatus := func(s Status) { sink.Emit(statusEventName(cfg.ID), s) }
		emitOutput := func(b []byte) { sink.Emit(outputEventName(cfg.ID), b) }
		emitResource := func(r ResourceSnapshot) { sink.Emit(resourceEventName(cfg.ID), r) }

		var cols, rows uint32 = 80, 24
		initialConnect := true
		var disconnectStarted time.Time
		var nextAttempt time.Time
		var nextAttemptNum uint32

		for {
			if initialConnect {
				emitStatus(connectingStatus())
			} else if nextAttemptNum > 0 {
				emitStatus(reconnectingStatus(nextAttemptNum, maxRetries))
			}

			if !initialConnect {
				shutdown, collapse := waitUntil(nextAttempt, cmdRx, &cols, &rows)
				if shutdown {
					emitStatus(disconnectedStatus())
					secLogger.LogSession(SubtypeSessionClosed, OutcomeSuccess, SeverityInfo, nil)
					return
				}
				if collapse {
					disconnectStarted = o.clock.Now()
					nextAttemptNum = 1
					emitStatus(reconnectingStatus(nextAttemptNum, maxRetries))
				}
				secLogger.LogReconnection(SubtypeReconnAttempt, OutcomeSuccess, SeverityInfo,
					map[string]any{"attempt": nextAttemptNum})
			}

			secLogger.LogAuthentication(SubtypeAuthAttempt, OutcomeSuccess, SeverityInfo, nil)
			transport, err := o.connect(cfg, cols, rows, initialConnect)
			if err != nil {
				emitStatus(errorStatus("%v", err))
				if errors.Is(err, ErrAuth) {
					secLogger.LogAuthentication(SubtypeAuthFailure, OutcomeFailure, SeverityError,
						map[string]any{"error": err.Error()})
				} else {
					secLogger.LogConnection(SubtypeConnFailed, OutcomeFailure, SeverityError,
						map[string]any{"error": err.Error()})
				}

				fatal := initialConnect || isAuthFatal(err.Error())
				if fatal {
					emitStatus(reconnectFailedStatus())
					secLogger.LogReconnection(SubtypeReconnExhausted, OutcomeFailure, SeverityError, nil)
					if manualWait(cmdRx, &cols, &rows) {
						emitStatus(disconnectedStatus())
						return
					}
					initialConnect = false
					disconnectStarted = o.clock.Now()
					nextAttemptNum = 1
					continue
				}

				if nextAttemptNum >= maxRetries {
					emitStatus(reconnectFailedStatus())
					secLogger.LogReconnection(SubtypeReconnExhausted, OutcomeFailure, SeverityError, nil)
					if manualWait(cmdRx, &cols, &rows) {
						emitStatus(disconnectedStatus())
						return
					}
					disconnectStarted = o.clock.Now()
					nextAttemptNum = 1
					continue
				}

				next := nextAttemptNum + 1
				if next > maxRetries {
					next = maxRetries
				}
				nextAttemptNum = next
				nextAttempt = nextAttemptAt(disconnectStarted, next, jitter)
				continue
			}

			emitStatus(connectedStatus())
			secLogger.LogAuthentication(SubtypeAuthSuccess, OutcomeSuccess, SeverityInfo, nil)
			secLogger.LogConnection(SubtypeConnEstablished, OutcomeSuccess, SeverityInfo, nil)
			if initialConnect {
				secLogger.LogSession(SubtypeSessionOpened, OutcomeSuccess, SeverityInfo, nil)
			} else {
				secLogger.LogReconnection(SubtypeReconnSuccess, OutcomeSuccess, SeverityInfo, nil)
			}
			initialConnect = false
			nextAttemptNum = 0

			outCh := make(chan outputChunk, 4)
			go readPTYLoop(transport.OutputReader(), outCh)

			lastResourceEmit := o.clock.Now().Add(-5 * time.Second)
			drop := false

			for !drop {
				select {
				case cmd, ok := <-cmdRx:
					if !ok {
						transport.Close()
						emitStatus(disconnectedStatus())
						return
					}
					switch c := cmd.(type) {
					case WriteCommand:
						if _, werr := transport.Write(c.Data); werr != nil {
							emitStatus(errorStatus("channel write: %v", werr))
							drop = true
						}
					case ResizeCommand:
						cols, rows = c.Cols, c.Rows
						_ = transport.Resize(cols, rows) // resize errors are non-fatal; the PTY stays usable at the old size
					case ReconnectNowCommand:
						// ignored while connected
					case ListDirCommand:
						entries, lerr := transport.ListDirectory(c.Path)
						c.Reply <- listDirResult{entries: entries, err: lerr}
					case ReadFileCommand:
						limit := uint64(DefaultMaxReadBytes)
						if c.HasMax {
							limit = c.MaxBytes
						}
						res, rerr := transport.ReadFile(c.Path, limit)
						c.Reply <- readFileReply{result: res, err: rerr}
					case ShutdownCommand:
						transport.Close()
						emitStatus(disconnectedStatus())
						secLogger.LogSession(SubtypeSessionClosed, OutcomeSuccess, SeverityInfo, nil)
						return
					}
				default:
				}

				if !drop {
					select {
					case chunk, ok := <-outCh:
						switch {
						case !ok:
							drop = true
						case chunk.err != nil:
							if chunk.err != io.EOF {
								emitStatus(errorStatus("channel read: %v", chunk.err))
							}
							drop = true
						case len(chunk.data) > 0:
							emitOutput(chunk.data)
						}
					default:
					}
				}

				if !drop && o.clock.Now().Sub(lastResourceEmit) >= 5*time.Second {
					ran, _ := breaker.Execute(func() error {
						snap, serr := transport.SampleResources(cfg.ProjectPath, o.clock.Now)
						emitResource(snap)
						return serr
					})
					if !ran {
						diskPath := cfg.ProjectPath
						if diskPath == "" {
							diskPath = "/"
						}
						emitResource(ResourceSnapshot{
							TSEpoch:  uint64(o.clock.Now().Unix()),
							DiskPath: diskPath,
						})
					}
					lastResourceEmit = o.clock.Now()
				}

				if !drop {
					time.Sleep(10 * time.Millisecond)
				}
			}

			transport.Close()
			secLogger.LogConnection(SubtypeConnClosed, OutcomeFailure, SeverityWarning, nil)
			disconnectStarted = o.clock.Now()
			nextAttemptNum = 1
			nextAttempt = nextAttemptAt(disconnectStarted, 1, jitter)
		}
	}
}

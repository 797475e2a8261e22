package session

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const dialTimeout = 10 * time.Second

// secureTransport is the contract the state machine needs from the
// underlying secure-shell library. liveTransport is the
// golang.org/x/crypto/ssh + github.com/pkg/sftp backed implementation;
// tests substitute a fake to drive the worker deterministically.
type secureTransport interface {
	Write(data []byte) (int, error)
	OutputReader() io.Reader
	Resize(cols, rows uint32) error
	ListDirectory(path string) ([]FileEntry, error)
	ReadFile(path string, limit uint64) (ReadFileResult, error)
	SampleResources(projectPath string, now func() time.Time) (ResourceSnapshot, error)
	Close()
}

// liveTransport is one connected session's resources: the underlying SSH
// client, the interactive PTY channel/session, and a lazily-opened SFTP
// client. Apart from the transport's own keepalive goroutine (which uses
// client and stopKA) and the worker's PTY reader goroutine (which reads
// stdout), only the owning worker goroutine touches these.
type liveTransport struct {
	client  *ssh.Client
	shell   *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	sftp    *sftp.Client
	stopKA  chan struct{}
}

// connectShell resolves the host, dials with a hard timeout, disables
// Nagle, runs the handshake+auth, and brings up an interactive PTY shell.
// The same sequence is reused for both the initial connect and every
// reconnect attempt; only the startup-command write is conditional on
// runStartupCommand, since it must fire once per session lifetime, not once
// per connection.
func connectShell(cfg Config, cols, rows uint32, runStartupCommand bool) (secureTransport, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.port()))

	var authMethods []ssh.AuthMethod
	switch cfg.Auth {
	case AuthKey:
		keyPath := cfg.KeyPath
		if keyPath == "" {
			return nil, fmt.Errorf("%w: key auth requires key_path", ErrAuth)
		}
		keyBytes, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read key %s: %v", ErrAuth, keyPath, err)
		}
		var signer ssh.Signer
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse key %s: %v", ErrAuth, keyPath, err)
		}
		authMethods = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case AuthPassword:
		if cfg.Password == "" {
			return nil, fmt.Errorf("%w: password auth requires password", ErrAuth)
		}
		authMethods = []ssh.AuthMethod{ssh.Password(cfg.Password)}
	default:
		return nil, fmt.Errorf("%w: unsupported auth method", ErrAuth)
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // host-key policy resolved upstream of this package
		Timeout:         dialTimeout,
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: tcp connect %s: %v", ErrTCPConnect, addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: handshake %s: %v", ErrHandshake, addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	shell, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: channel_session: %v", ErrChannel, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}
	if err := shell.RequestPty("xterm-256color", int(rows), int(cols), modes); err != nil {
		shell.Close()
		client.Close()
		return nil, fmt.Errorf("%w: request_pty: %v", ErrPty, err)
	}

	stdin, err := shell.StdinPipe()
	if err != nil {
		shell.Close()
		client.Close()
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrChannel, err)
	}
	stdout, err := shell.StdoutPipe()
	if err != nil {
		shell.Close()
		client.Close()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrChannel, err)
	}

	if err := shell.Shell(); err != nil {
		shell.Close()
		client.Close()
		return nil, fmt.Errorf("%w: shell: %v", ErrChannel, err)
	}

	if cfg.ProjectPath != "" {
		if _, err := stdin.Write([]byte("cd " + cfg.ProjectPath + "\n")); err != nil {
			shell.Close()
			client.Close()
			return nil, fmt.Errorf("%w: write cd command: %v", ErrChannel, err)
		}
	}

	if runStartupCommand && cfg.StartupCommand != "" {
		if _, err := stdin.Write([]byte(cfg.StartupCommand + "\n")); err != nil {
			shell.Close()
			client.Close()
			return nil, fmt.Errorf("%w: write startup command: %v", ErrChannel, err)
		}
	}

	t := &liveTransport{
		client: client,
		shell:  shell,
		stdin:  stdin,
		stdout: stdout,
		stopKA: make(chan struct{}),
	}
	go t.keepaliveLoop(cfg.keepaliveInterval())
	return t, nil
}

// keepaliveLoop sends a client-side keepalive@openssh.com global request on
// an interval, since golang.org/x/crypto/ssh has no built-in keepalive.
func (t *liveTransport) keepaliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopKA:
			return
		case <-ticker.C:
			_, _, _ = t.client.SendRequest("keepalive@openssh.com", true, nil)
		}
	}
}

// sftpClient lazily opens the SFTP subsystem on this transport, reused for
// every ListDir/ReadFile request against the session.
func (t *liveTransport) sftpClient() (*sftp.Client, error) {
	if t.sftp != nil {
		return t.sftp, nil
	}
	c, err := sftp.NewClient(t.client)
	if err != nil {
		return nil, fmt.Errorf("sftp init: %w", err)
	}
	t.sftp = c
	return c, nil
}

func (t *liveTransport) Write(data []byte) (int, error) {
	return t.stdin.Write(data)
}

func (t *liveTransport) OutputReader() io.Reader {
	return t.stdout
}

func (t *liveTransport) Resize(cols, rows uint32) error {
	if err := t.shell.WindowChange(int(rows), int(cols)); err != nil {
		return fmt.Errorf("%w: %v", ErrPty, err)
	}
	return nil
}

func (t *liveTransport) ListDirectory(path string) ([]FileEntry, error) {
	c, err := t.sftpClient()
	if err != nil {
		return nil, err
	}
	return listDirectory(c, path)
}

func (t *liveTransport) ReadFile(path string, limit uint64) (ReadFileResult, error) {
	c, err := t.sftpClient()
	if err != nil {
		return ReadFileResult{}, err
	}
	return readFile(c, path, limit)
}

func (t *liveTransport) SampleResources(projectPath string, now func() time.Time) (ResourceSnapshot, error) {
	return collectResourceSnapshot(t.client, projectPath, now)
}

func (t *liveTransport) Close() {
	close(t.stopKA)
	if t.sftp != nil {
		t.sftp.Close()
	}
	t.shell.Close()
	t.client.Close()
}

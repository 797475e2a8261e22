// Command sshfleet-demo connects a single interactive session and relays
// the local terminal to its PTY, for manually exercising the fleet/session
// packages end to end. Informative only, not part of the core contract.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/smnsjas/sshfleet/fleet"
	"github.com/smnsjas/sshfleet/session"
	"golang.org/x/term"
)

func main() {
	host := flag.String("host", "", "remote host")
	port := flag.Uint("port", 22, "remote port")
	user := flag.String("user", "", "SSH username")
	keyPath := flag.String("key", "", "path to SSH private key (omit to use --password)")
	password := flag.String("password", "", "SSH password (prompted if both --key and --password are omitted)")
	projectPath := flag.String("path", "", "remote directory to cd into on connect")

	flag.Parse()

	if *host == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "usage: sshfleet-demo --host h --user u [--key path | --password pw] [--port n] [--path dir]")
		os.Exit(1)
	}

	cfg := session.Config{
		ID:          "demo",
		Host:        *host,
		Port:        uint16(*port),
		User:        *user,
		ProjectPath: *projectPath,
	}
	if *keyPath != "" {
		cfg.Auth = session.AuthKey
		cfg.KeyPath = *keyPath
	} else {
		cfg.Auth = session.AuthPassword
		cfg.Password = resolvePassword(*password)
	}

	m := fleet.NewManager()
	sink := session.NewChannelEventSink(256)

	id, err := m.Connect(cfg, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer m.Disconnect(id)

	fd := int(os.Stdin.Fd())
	var restore *term.State
	if term.IsTerminal(fd) {
		restore, err = term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, restore)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH, os.Interrupt)

	go relayStdin(m, id)
	go reportEvents(sink)

	for sig := range sigCh {
		if sig == os.Interrupt {
			return
		}
		if w, h, err := term.GetSize(fd); err == nil {
			_ = m.Resize(id, uint32(w), uint32(h))
		}
	}
}

func relayStdin(m *fleet.Manager, id string) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			_ = m.SendInput(id, append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			return
		}
	}
}

func reportEvents(sink *session.ChannelEventSink) {
	for ev := range sink.Events() {
		switch p := ev.Payload.(type) {
		case session.Status:
			fmt.Fprintf(os.Stderr, "\r\n[status] %s\r\n", p.String())
		case []byte:
			os.Stdout.Write(p)
		case session.ResourceSnapshot:
			fmt.Fprintf(os.Stderr, "\r\n[resources] cpu=%v ram=%v disk=%v (%s)\r\n",
				derefOrNil(p.CPUPercent), derefOrNil(p.RAMPercent), derefOrNil(p.DiskPercent), p.DiskPath)
		}
	}
}

func derefOrNil(v *float64) any {
	if v == nil {
		return "n/a"
	}
	return *v
}

func resolvePassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	fmt.Fprint(os.Stderr, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		passBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return string(passBytes)
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// Package sshfleet manages a fleet of concurrent, long-lived interactive
// SSH sessions: one worker goroutine per remote host driving the
// connect/auth/PTY/run/drop/reconnect lifecycle, with on-demand SFTP
// inspection and periodic host-resource sampling.
//
// # Architecture
//
// The module is organized into layers:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  fleet/        Keyed collection of sessions, parallel   │
//	│                connect, id-addressed dispatch           │
//	├─────────────────────────────────────────────────────────┤
//	│  session/      Per-session state machine, transport,    │
//	│                SFTP ops, resource sampler, reconnect    │
//	├─────────────────────────────────────────────────────────┤
//	│  internal/log  Redacting slog handler, rotating file    │
//	│                sink                                     │
//	└─────────────────────────────────────────────────────────┘
//
// # Quick Start
//
//	m := fleet.NewManager()
//	sink := session.NewChannelEventSink(256)
//	id, err := m.Connect(session.Config{
//	    ID:   "web-1",
//	    Host: "198.51.100.10",
//	    User: "deploy",
//	    Auth: session.AuthKey,
//	    KeyPath: "/home/deploy/.ssh/id_ed25519",
//	}, sink)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Disconnect(id)
//
//	for ev := range sink.Events() {
//	    fmt.Printf("%s: %v\n", ev.Name, ev.Payload)
//	}
package sshfleet

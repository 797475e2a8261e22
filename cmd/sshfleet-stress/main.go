// Command sshfleet-stress is an informative harness that drives up to ten
// concurrent sessions against real hosts, optionally injects a disconnect,
// and reports pass/fail against uptime and reconnect criteria. It is not
// part of the core contract.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smnsjas/sshfleet/fleet"
	sshfleetlog "github.com/smnsjas/sshfleet/internal/log"
	"github.com/smnsjas/sshfleet/session"
)

func main() {
	targetsFlag := flag.String("targets", "", "comma-separated host[:port] targets (auto-repeated to 10)")
	user := flag.String("user", "", "SSH username")
	keyPath := flag.String("key", "", "path to SSH private key")
	passphrase := flag.String("passphrase", "", "key passphrase (empty = none)")
	durationSecs := flag.Uint64("duration-secs", 1800, "total run duration in seconds")
	pollIntervalSecs := flag.Uint64("poll-interval-secs", 5, "poll interval in seconds (parsed but not applied; sessions sample resources every 5s)")
	intensity := flag.String("intensity", "medium", "PTY output intensity: low / medium / high")
	disconnectAfterSecs := flag.Uint64("disconnect-after-secs", 0, "inject a disconnect after this many seconds (0 = disabled)")
	logPath := flag.String("log-path", "sshfleet_stress_results.jsonl", "JSONL results output path")
	debugLogPath := flag.String("debug-log-path", "", "optional rotating structured debug log path")
	maxReconnectAttempts := flag.Uint("max-reconnect-attempts", 3, "max reconnect attempts per disconnect")
	reconnectTimeoutSecs := flag.Uint64("reconnect-timeout-secs", 15, "reconnect budget in seconds (parsed but not applied; the pass check uses a fixed 15s p95 bound)")

	flag.Parse()

	if *targetsFlag == "" || *user == "" || *keyPath == "" {
		fmt.Fprintln(os.Stderr, "usage: sshfleet-stress --targets h1:22,h2:22 --user u --key ~/.ssh/id_ed25519 [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var logger *slog.Logger
	if *debugLogPath != "" {
		rf, err := sshfleetlog.NewRotatingFile(*debugLogPath, 10*1024*1024, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
			os.Exit(1)
		}
		defer rf.Close()
		logger = slog.New(sshfleetlog.NewRedactingHandler(slog.NewJSONHandler(rf, nil)))
	}

	targets := parseTargets(*targetsFlag)

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open results log: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	jl := &jsonlWriter{w: bufio.NewWriter(logFile)}
	defer jl.flush()

	fmt.Fprintf(os.Stderr, "[sshfleet-stress] starting %d sessions for %ds\n", len(targets), *durationSecs)

	m := fleet.NewManager()
	stats := make([]*sessionStats, len(targets))
	var wg sync.WaitGroup
	start := time.Now()

	for i, tgt := range targets {
		stats[i] = &sessionStats{id: i, host: tgt.host, port: tgt.port}
		cfg := session.Config{
			ID:                fmt.Sprintf("stress-%d", i),
			Host:              tgt.host,
			Port:              tgt.port,
			User:              *user,
			Auth:              session.AuthKey,
			KeyPath:           *keyPath,
			Passphrase:        *passphrase,
			ReconnectMaxRetries: uint32(*maxReconnectAttempts),
		}
		sink := session.NewChannelEventSink(256)

		id, err := m.Connect(cfg, sink, session.WithLogger(logger))
		if err != nil {
			jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: i, Host: tgt.host, Event: "spawn_error", Detail: err.Error()})
			continue
		}

		wg.Add(1)
		go watchSession(&wg, jl, sink, stats[i], id, start, time.Duration(*disconnectAfterSecs)*time.Second,
			time.Duration(*durationSecs)*time.Second, time.Duration(*pollIntervalSecs)*time.Second,
			time.Duration(*reconnectTimeoutSecs)*time.Second, *intensity, m)
	}

	wg.Wait()
	m.DisconnectAll()

	printSummary(jl, stats, time.Since(start), *disconnectAfterSecs > 0)
}

type target struct {
	host string
	port uint16
}

// parseTargets splits the comma-separated host[:port] list and repeats it
// to fill ten slots.
func parseTargets(raw string) []target {
	var parsed []target
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		host, portStr, ok := strings.Cut(part, ":")
		port := uint64(22)
		if ok {
			if p, err := strconv.ParseUint(portStr, 10, 16); err == nil {
				port = p
			}
		}
		parsed = append(parsed, target{host: host, port: uint16(port)})
	}
	if len(parsed) == 0 {
		return nil
	}
	out := make([]target, 10)
	for i := range out {
		out[i] = parsed[i%len(parsed)]
	}
	return out
}

// sessionStats accumulates one session's harness-observable counters for
// the final summary.
type sessionStats struct {
	mu                sync.Mutex
	id                int
	host              string
	port              uint16
	connectedOnce     bool
	totalPolls        uint64
	totalPTYBytes     uint64
	abnormalEnds      uint32
	reconnectAttempts uint32
	reconnectSuccess  uint32
	reconnectTimesMs  []uint64
}

func watchSession(
	wg *sync.WaitGroup,
	jl *jsonlWriter,
	sink *session.ChannelEventSink,
	stats *sessionStats,
	id string,
	start time.Time,
	disconnectAfter, duration, pollInterval, reconnectTimeout time.Duration,
	intensity string,
	m *fleet.Manager,
) {
	defer wg.Done()

	deadline := start.Add(duration)
	var disconnectOnce sync.Once
	var reconnectStartedAt time.Time

	writeCadence := map[string]time.Duration{"low": 2 * time.Second, "medium": 500 * time.Millisecond, "high": 100 * time.Millisecond}[intensity]
	if writeCadence == 0 {
		writeCadence = 500 * time.Millisecond
	}
	pokeTicker := time.NewTicker(writeCadence)
	defer pokeTicker.Stop()

	// A nil channel blocks forever in a select, so disabling injection
	// (disconnectAfter == 0) just never fires this case instead of firing
	// on every iteration.
	var disconnectFire <-chan time.Time
	if disconnectAfter > 0 {
		disconnectTimer := time.NewTimer(disconnectAfter)
		defer disconnectTimer.Stop()
		disconnectFire = disconnectTimer.C
	}

	for {
		if time.Now().After(deadline) {
			return
		}
		select {
		case ev, ok := <-sink.Events():
			if !ok {
				return
			}
			handleEvent(jl, stats, id, start, ev, &reconnectStartedAt)
		case <-pokeTicker.C:
			_ = m.SendInput(id, []byte("\n"))
			stats.mu.Lock()
			stats.totalPolls++
			stats.mu.Unlock()
		case <-disconnectFire:
			disconnectOnce.Do(func() {
				jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: stats.id, Host: stats.host, Event: "inject_disconnect"})
				_ = m.Reconnect(id)
			})
		}
	}
}

func handleEvent(jl *jsonlWriter, stats *sessionStats, id string, start time.Time, ev session.NamedEvent, reconnectStartedAt *time.Time) {
	elapsed := uint64(time.Since(start).Milliseconds())
	switch st, ok := ev.Payload.(session.Status); {
	case ok:
		stats.mu.Lock()
		defer stats.mu.Unlock()
		switch st.Kind {
		case session.StatusConnected:
			stats.connectedOnce = true
			if !reconnectStartedAt.IsZero() {
				stats.reconnectSuccess++
				stats.reconnectTimesMs = append(stats.reconnectTimesMs, uint64(time.Since(*reconnectStartedAt).Milliseconds()))
				*reconnectStartedAt = time.Time{}
			}
			jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: stats.id, Host: stats.host, Event: "connected", ElapsedMs: &elapsed})
		case session.StatusReconnecting:
			if reconnectStartedAt.IsZero() {
				*reconnectStartedAt = time.Now()
				stats.reconnectAttempts++
			}
			attempt := st.Attempt
			jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: stats.id, Host: stats.host, Event: "reconnecting", ElapsedMs: &elapsed, Attempt: &attempt})
		case session.StatusError:
			stats.abnormalEnds++
			jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: stats.id, Host: stats.host, Event: "error", Detail: st.Message, ElapsedMs: &elapsed})
		case session.StatusReconnectFailed:
			jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: stats.id, Host: stats.host, Event: "reconnect_failed", ElapsedMs: &elapsed})
		case session.StatusDisconnected:
			jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: stats.id, Host: stats.host, Event: "disconnected", ElapsedMs: &elapsed})
		}
	default:
		if b, ok := ev.Payload.([]byte); ok {
			stats.mu.Lock()
			stats.totalPTYBytes += uint64(len(b))
			stats.mu.Unlock()
		}
	}
}

// jsonEvent is one line of the JSONL results log.
type jsonEvent struct {
	TS        string  `json:"ts"`
	SessionID int     `json:"session_id"`
	Host      string  `json:"host"`
	Event     string  `json:"event"`
	Detail    string  `json:"detail,omitempty"`
	ElapsedMs *uint64 `json:"elapsed_ms,omitempty"`
	Attempt   *uint32 `json:"attempt,omitempty"`
	Success   *bool   `json:"success,omitempty"`
}

type jsonlWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (j *jsonlWriter) emit(ev jsonEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.w.Write(line)
	j.w.WriteByte('\n')
}

func (j *jsonlWriter) flush() {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.w.Flush()
}

func percentile(values []uint64, pct float64) uint64 {
	if len(values) == 0 {
		return 0
	}
	data := append([]uint64(nil), values...)
	sort.Slice(data, func(i, j int) bool { return data[i] < data[j] })
	idx := int((pct / 100.0) * float64(len(data)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}

func printSummary(jl *jsonlWriter, stats []*sessionStats, totalElapsed time.Duration, reconnectTested bool) {
	fmt.Fprintln(os.Stderr, "\n[sshfleet-stress] ===== SUMMARY =====")
	fmt.Fprintf(os.Stderr, "[sshfleet-stress] total runtime: %.1fs\n", totalElapsed.Seconds())

	var allReconnectTimes []uint64
	var globalAttempts, globalSuccess uint32
	connectedOnceCount := 0
	var totalAbnormal uint32

	for _, s := range stats {
		s.mu.Lock()
		if s.connectedOnce {
			connectedOnceCount++
		}
		totalAbnormal += s.abnormalEnds
		globalAttempts += s.reconnectAttempts
		globalSuccess += s.reconnectSuccess
		allReconnectTimes = append(allReconnectTimes, s.reconnectTimesMs...)
		rate := 0.0
		if s.reconnectAttempts > 0 {
			rate = float64(s.reconnectSuccess) / float64(s.reconnectAttempts) * 100
		}
		fmt.Fprintf(os.Stderr, "  session-%d: host=%s:%d connected_once=%v polls=%d pty_bytes=%d abnormal=%d rc_attempts=%d rc_ok=%d rc_rate=%.0f%% rc_p50=%dms rc_p95=%dms\n",
			s.id, s.host, s.port, s.connectedOnce, s.totalPolls, s.totalPTYBytes, s.abnormalEnds,
			s.reconnectAttempts, s.reconnectSuccess, rate, percentile(s.reconnectTimesMs, 50), percentile(s.reconnectTimesMs, 95))
		s.mu.Unlock()
	}

	globalRate := 0.0
	if globalAttempts > 0 {
		globalRate = float64(globalSuccess) / float64(globalAttempts) * 100
	}
	p50 := percentile(allReconnectTimes, 50)
	p95 := percentile(allReconnectTimes, 95)

	elapsedMs := uint64(totalElapsed.Milliseconds())
	jl.emit(jsonEvent{TS: time.Now().UTC().Format(time.RFC3339Nano), SessionID: 0, Host: "harness", Event: "summary", ElapsedMs: &elapsedMs})
	jl.flush()

	uptimeOK := totalAbnormal == 0 && connectedOnceCount == len(stats)
	reconnectOK := true
	if reconnectTested {
		reconnectOK = globalRate >= 90.0 && p95 <= 15000
	}

	fmt.Fprintln(os.Stderr, "\n[sshfleet-stress] PASS/FAIL checklist:")
	fmt.Fprintf(os.Stderr, "  [%s] %d sessions uptime (connected_once: %d/%d, abnormal ends: %d)\n",
		passLabel(uptimeOK), len(stats), connectedOnceCount, len(stats), totalAbnormal)
	if reconnectTested {
		fmt.Fprintf(os.Stderr, "  [%s] reconnect >= 90%% and p95 <= 15s (rate: %.1f%%, ok/attempts: %d/%d, p95=%dms)\n",
			passLabel(reconnectOK), globalRate, globalSuccess, globalAttempts, p95)
	} else {
		fmt.Fprintln(os.Stderr, "  [N/A ] reconnect test skipped (no --disconnect-after-secs)")
	}

	if !uptimeOK || !reconnectOK {
		os.Exit(1)
	}
}

func passLabel(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

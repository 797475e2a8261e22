package session

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// execReadToString runs cmd as a one-shot exec channel on sess, reading
// stdout and appending stderr if non-empty.
func execReadToString(sess *ssh.Client, cmd string) (string, error) {
	ch, err := sess.NewSession()
	if err != nil {
		return "", fmt.Errorf("channel_session: %w", err)
	}
	defer ch.Close()

	var stdout, stderr strings.Builder
	ch.Stdout = &stdout
	ch.Stderr = &stderr

	if err := ch.Run(cmd); err != nil {
		if stderr.Len() == 0 {
			return "", fmt.Errorf("exec %s: %w", cmd, err)
		}
		// Non-zero exit with stderr output; still surface what we captured,
		// since top/free/df rarely fail outright and the parsers tolerate
		// partial output.
	}

	out := stdout.String()
	if errOut := strings.TrimSpace(stderr.String()); errOut != "" {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += stderr.String()
	}
	return out, nil
}

// collectResourceSnapshot issues three independent sampling execs (CPU, RAM,
// disk), parsing each output separately so one parse failure never
// suppresses the other fields.
//
// The returned error is non-nil only when all three exec round trips
// failed outright (channel open/exec failure, not a parse miss) — the
// signal the resource sampler's circuit breaker uses to detect a host that
// is TCP-reachable but unresponsive at the shell level. A partial failure
// (e.g. df erroring while top/free succeed) still yields a snapshot and
// does not count against the breaker.
func collectResourceSnapshot(sess *ssh.Client, projectPath string, now func() time.Time) (ResourceSnapshot, error) {
	cpuOut, cpuErr := execReadToString(sess, "LANG=C top -bn1")
	freeOut, freeErr := execReadToString(sess, "LANG=C free -m")

	preferredPath := strings.TrimSpace(projectPath)
	if preferredPath == "" {
		preferredPath = "/"
	}

	diskPath := preferredPath
	dfOut, dfErr := execReadToString(sess, "LANG=C df -P "+shellEscape(preferredPath))
	if dfErr != nil && preferredPath != "/" {
		diskPath = "/"
		dfOut, dfErr = execReadToString(sess, "LANG=C df -P /")
	}

	snap := ResourceSnapshot{
		TSEpoch:  uint64(now().Unix()),
		DiskPath: diskPath,
	}
	if p := parseCPUPercentFromTop(cpuOut); p != nil {
		snap.CPUPercent = p
	}
	if p := parseRAMPercentFromFree(freeOut); p != nil {
		snap.RAMPercent = p
	}
	if dfErr == nil {
		if p := parseDiskPercentFromDF(dfOut); p != nil {
			snap.DiskPercent = p
		}
	}

	if cpuErr != nil && freeErr != nil && dfErr != nil {
		return snap, fmt.Errorf("resource sampling: all exec channels failed: %w", cpuErr)
	}
	return snap, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// parseCPUPercentFromTop supports both classic `top` ("Cpu(s): ... id ...")
// and busybox `top` ("CPU: ... NN% idle ...") output formats.
func parseCPUPercentFromTop(output string) *float64 {
	var line string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		l := scanner.Text()
		if strings.Contains(l, "Cpu(s)") || strings.Contains(l, "%Cpu(s)") || strings.Contains(l, "CPU:") {
			line = l
			break
		}
	}
	if line == "" {
		return nil
	}

	if strings.Contains(line, "Cpu(s)") || strings.Contains(line, "%Cpu(s)") {
		parts := line
		if idx := strings.Index(line, ":"); idx >= 0 {
			parts = line[idx+1:]
		}
		for _, seg := range strings.Split(parts, ",") {
			fields := strings.Fields(strings.TrimSpace(seg))
			if len(fields) >= 2 && fields[1] == "id" {
				if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
					idle := clampPercent(100 - v)
					return &idle
				}
			}
		}
		return nil
	}

	// busybox: "CPU:  0% usr  0% sys  0% nic 99% idle  0% io  0% irq  0% sirq"
	fields := strings.Fields(line)
	for i, tok := range fields {
		if !strings.HasSuffix(tok, "%") {
			continue
		}
		if i+1 >= len(fields) || fields[i+1] != "idle" {
			continue
		}
		valStr := strings.TrimSuffix(tok, "%")
		if v, err := strconv.ParseFloat(valStr, 64); err == nil {
			idle := clampPercent(100 - v)
			return &idle
		}
	}
	return nil
}

// parseRAMPercentFromFree reads the `Mem:` line of `free -m`, where
// field[1] is total and field[2] is used.
func parseRAMPercentFromFree(output string) *float64 {
	var line string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		l := scanner.Text()
		if strings.HasPrefix(strings.TrimLeft(l, " \t"), "Mem:") {
			line = l
			break
		}
	}
	if line == "" {
		return nil
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil
	}
	total, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || total <= 0 {
		return nil
	}
	used, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil
	}
	v := clampPercent(used / total * 100)
	return &v
}

// parseDiskPercentFromDF reads the first non-empty data line of `df -P`
// and finds the first field ending in '%'.
func parseDiskPercentFromDF(output string) *float64 {
	scanner := bufio.NewScanner(strings.NewReader(output))
	if !scanner.Scan() {
		return nil
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for _, f := range strings.Fields(line) {
			if strings.HasSuffix(f, "%") {
				v, err := strconv.ParseFloat(strings.TrimSuffix(f, "%"), 64)
				if err != nil {
					return nil
				}
				v = clampPercent(v)
				return &v
			}
		}
		return nil
	}
	return nil
}

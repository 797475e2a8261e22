package session

import (
	"context"
	"log/slog"
	"os"
	"strings"

	sshfleetlog "github.com/smnsjas/sshfleet/internal/log"
)

// ensureLogger resolves a *slog.Logger for a session: explicit configuration
// wins, otherwise SSHFLEET_LOG_LEVEL / SSHFLEET_DEBUG env vars opt a session
// into logging without requiring the embedding application to wire one up.
// Every record is passed through a redacting handler so passwords and key
// material never reach a log sink even when a caller's own slog.Handler
// wouldn't have filtered them.
func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return slog.New(sshfleetlog.NewRedactingHandler(logger.Handler()))
	}

	envLevel := os.Getenv("SSHFLEET_LOG_LEVEL")
	envDebug := os.Getenv("SSHFLEET_DEBUG")

	var level slog.Level
	switch {
	case envLevel != "":
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			if envDebug == "" {
				return nil
			}
			level = slog.LevelDebug
		}
	case envDebug != "":
		level = slog.LevelDebug
	default:
		return nil
	}

	base := slog.Default()
	if base.Enabled(context.Background(), level) {
		return slog.New(sshfleetlog.NewRedactingHandler(base.Handler()))
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(sshfleetlog.NewRedactingHandler(handler))
}

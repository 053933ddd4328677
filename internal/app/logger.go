package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger constructs a *slog.Logger using the provided level and optional format.
// Supported levels: debug, info, warn, error.
// Supported formats: text (default), json.
// Logs go to w, or stderr when w is nil, keeping stdout for tool output.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	logger := slog.New(handler)
	return logger.With("component", "svn-action"), nil
}

func parseLevel(level string) (*slog.LevelVar, error) {
	var lvl slog.LevelVar

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info", "":
		lvl.Set(slog.LevelInfo)
	case "warn", "warning":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		return nil, fmt.Errorf("unsupported log level %q", level)
	}

	return &lvl, nil
}

package reportrunner

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// newLogger returns a slog.Logger writing to w. Report output owns stdout, so
// callers pass stderr here.
func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported --log-format %q (expected text|json)", format)
	}
}

// Package logging builds the leveled slog logger and a sink that echoes
// drained agent log lines through it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/talgya/crowdsim/internal/engine"
)

// LevelTrace is a custom slog level below Debug. At this level every agent
// log line is echoed.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LineSink writes agent log lines to a logger at a fixed level. It is the
// sink used when no database is configured.
type LineSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewLineSink returns a sink logging at LevelTrace.
func NewLineSink(l *slog.Logger) *LineSink {
	return &LineSink{Logger: l, Level: LevelTrace}
}

// WriteLog implements engine.Sink. It never fails.
func (s *LineSink) WriteLog(lines []engine.LogLine) error {
	ctx := context.Background()
	if !s.Logger.Enabled(ctx, s.Level) {
		return nil
	}
	for _, l := range lines {
		s.Logger.Log(ctx, s.Level, l.Text, "tick", l.Tick, "agent", l.Name)
	}
	return nil
}

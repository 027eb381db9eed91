// Package debug builds the structured loggers used across hierview.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/recera/hierview/pkg/scheduler"
)

// Format selects the log handler
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewLogger creates a logger writing to w, or stderr when w is nil.
// The "error" key is shortened to "err".
func NewLogger(level slog.Level, format Format, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// NewNop returns a logger that discards everything
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// EnableLogging installs logger as the process default and routes scheduler
// task failures through it
func EnableLogging(logger *slog.Logger, loops ...*scheduler.Loop) {
	slog.SetDefault(logger)
	for _, l := range loops {
		l.SetLogger(logger)
	}
}

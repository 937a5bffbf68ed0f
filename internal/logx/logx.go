// Package logx builds the structured loggers used by the command line tools.
package logx

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var defaultLevel = slog.LevelInfo

// ParseLevel accepts debug, info, warn or error (case-insensitive). Empty
// means info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return defaultLevel, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return defaultLevel, fmt.Errorf("logx: bad level %q: %w", s, err)
	}
	return l, nil
}

// New returns a text logger writing to w at the named level.
func New(w io.Writer, level string) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

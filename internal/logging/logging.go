// Package logging builds the application slog.Logger and lets its level be
// changed at runtime.
package logging

import (
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
)

// Formats accepted in app.log_format.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Logging owns the process logger and its adjustable level.
type Logging struct {
	Logger *slog.Logger

	level *slog.LevelVar
	charm *charmlog.Logger
}

// New creates a logger writing to w. FormatText renders through
// charmbracelet/log; anything else produces JSON lines.
func New(w io.Writer, format string, level slog.Level) *Logging {
	l := &Logging{level: new(slog.LevelVar)}
	l.level.Set(level)

	if format == FormatText {
		l.charm = charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           charmlog.Level(level),
		})
		l.Logger = slog.New(l.charm)
		return l
	}

	l.Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l.level}))
	return l
}

// Level returns the current minimum level.
func (l *Logging) Level() slog.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level of the running logger.
func (l *Logging) SetLevel(level slog.Level) {
	l.level.Set(level)
	if l.charm != nil {
		l.charm.SetLevel(charmlog.Level(level))
	}
}

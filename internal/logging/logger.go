// Package logging is the zerolog-backed logger handed to every zenclaw
// subsystem. Children carry a "subsystem" field plus any scoped fields
// (agent name, session key) added with With.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Console styles, chosen by logging.consoleStyle.
const (
	StylePretty  = "pretty"
	StyleCompact = "compact"
	StyleJSON    = "json"
)

// LevelSilent disables output entirely.
const LevelSilent = "silent"

type Logger struct {
	zl zerolog.Logger
}

// New logs to w at level. A nil w means pretty console output on stderr.
func New(w io.Writer, level string) *Logger {
	return NewWithStyle(w, level, StylePretty)
}

// NewWithStyle is New with a console style. style is ignored when w is
// non-nil: explicit writers always get JSON lines.
func NewWithStyle(w io.Writer, level, style string) *Logger {
	if w == nil {
		w = console(style)
	}
	return &Logger{zl: zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()}
}

func console(style string) io.Writer {
	switch style {
	case StyleJSON:
		return os.Stderr
	case StyleCompact:
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen, NoColor: true}
	default:
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
}

// ParseLevel maps a configured level name to zerolog's, case-insensitively.
// "silent" disables logging; anything unrecognised is info.
func ParseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == LevelSilent {
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Sub scopes the logger to a subsystem; the innermost name wins.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

// With adds a string field to every entry of the returned logger.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Level reports the minimum level that is written.
func (l *Logger) Level() zerolog.Level { return l.zl.GetLevel() }

func (l *Logger) Trace() *zerolog.Event { return l.zl.Trace() }
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

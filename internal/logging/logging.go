// Package logging builds the process logger: human-readable text on stderr,
// plus JSON lines in a log file when one is requested.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger owns the handlers and any open log file.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  *os.File
}

// New returns a logger writing text to stderr and, when logFile is not
// empty, JSON to logFile (appending). The caller must Close it.
func New(level slog.Level, stderr io.Writer, logFile string) (*Logger, error) {
	lv := new(slog.LevelVar)
	lv.Set(level)

	var handlers []slog.Handler
	if stderr != nil {
		handlers = append(handlers, slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lv}))
	}

	var file *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: lv}))
	}

	return &Logger{
		Logger: slog.New(slogmulti.Fanout(handlers...)),
		level:  lv,
		file:   file,
	}, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetLevel changes the minimum level of every handler.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// LevelFor maps the --verbose flag to a level.
func LevelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

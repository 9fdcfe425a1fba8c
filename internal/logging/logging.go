// Package logging provides the tag-prefixed logger used across the
// engine, matching the teacher's log.Printf("[%s] ...", tag, ...)
// convention (config.go, camera.go, video.go) and mr_play.c's mrlog/
// DEBUGLog wrapper around vprintf.
package logging

import (
	"log"
	"os"
)

// Logger wraps a *log.Logger with a fixed component tag.
type Logger struct {
	tag  string
	base *log.Logger
}

// Default is the package-level logger used when callers don't supply
// their own, writing to stderr like the standard library default.
var Default = New("mediacore")

// New creates a Logger writing to stderr with the given component tag.
func New(tag string) *Logger {
	return &Logger{tag: tag, base: log.New(os.Stderr, "", log.LstdFlags)}
}

// WithOutput returns a copy of l writing to an arbitrary *log.Logger,
// letting a host redirect engine diagnostics into its own logging setup.
func (l *Logger) WithOutput(base *log.Logger) *Logger {
	return &Logger{tag: l.tag, base: base}
}

// Tagged returns a copy of l with a sub-tag appended, e.g.
// Default.Tagged("reader") logs as "[mediacore.reader] ...".
func (l *Logger) Tagged(sub string) *Logger {
	return &Logger{tag: l.tag + "." + sub, base: l.base}
}

func (l *Logger) Printf(format string, args ...any) {
	l.base.Printf("[%s] "+format, append([]any{l.tag}, args...)...)
}

func (l *Logger) Println(args ...any) {
	l.base.Println(append([]any{"[" + l.tag + "]"}, args...)...)
}

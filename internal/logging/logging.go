// Package logging provides zerolog-based structured logging for the chat
// relay. Initialize once at startup with Init, then use the leveled event
// helpers; every chain must be terminated with .Msg() or .Send().
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error. Default: info.
	Level string
	// Format is the output format: json or console. Default: json.
	Format string
}

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init configures the package logger. Safe to call more than once; the last
// call wins.
func Init(cfg Config) {
	level := parseLevel(cfg.Level)

	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	mu.Unlock()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "", "info":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	l := current()
	return l.Debug()
}

// Info starts an info-level event.
func Info() *zerolog.Event {
	l := current()
	return l.Info()
}

// Warn starts a warn-level event.
func Warn() *zerolog.Event {
	l := current()
	return l.Warn()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	l := current()
	return l.Error()
}

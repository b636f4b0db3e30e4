// Package applog centralizes log setup so every package in this repo logs
// through the same level-prefixed format, the way the teacher's internal/logger
// package wraps the standard log package for its whole server.
package applog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level is a minimum severity filter, cheaper to check than formatting a
// message that will be discarded.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var globalLevel atomic.Int32

// Logger is a component-scoped wrapper around the standard logger, grounded
// on internal/logger/logger.go's LogInfo/LogError/LogPanic helpers.
type Logger struct {
	name string
	out  *log.Logger
}

// New returns a component logger named name, writing to out (os.Stdout if nil).
func New(name string, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		name: name,
		out:  log.New(out, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() *Logger {
	return New("nop", io.Discard)
}

// SetLevel parses level ("debug", "info", "warn", "error") and installs it as
// the global minimum log level, the error path a bad -log-level flag takes.
func SetLevel(level string) error {
	var parsed Level
	switch strings.ToLower(level) {
	case "debug":
		parsed = LevelDebug
	case "info":
		parsed = LevelInfo
	case "warn", "warning":
		parsed = LevelWarn
	case "error":
		parsed = LevelError
	default:
		return fmt.Errorf("applog: invalid log level %q", level)
	}
	globalLevel.Store(int32(parsed))
	return nil
}

func (l *Logger) log(level Level, prefix, msg string) {
	if Level(globalLevel.Load()) > level {
		return
	}
	l.out.Printf("[%s] %s: %s", prefix, l.name, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, "DEBUG", fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, "INFO", fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, "WARN", fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, "ERROR", fmt.Sprintf(format, args...)) }

// WireEvent is the structured message-traffic log line from spec.md §6: every
// sent or received line may optionally be logged with both endpoints'
// address:port and a millisecond-precision timestamp.
func WireEvent(logger *Logger, direction, src, dst, line string) {
	logger.Debugf("wire direction=%s src=%s dst=%s ts=%s line=%q",
		direction, src, dst, time.Now().UTC().Format("2006-01-02T15:04:05.000"), line)
}

// Package logging builds the zap loggers used across shadowplay.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a sugared zap logger. Call sites use the Infow/Warnw style.
type Logger struct {
	*zap.SugaredLogger
	file *os.File
}

// Options configure a logger built by New.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	File   string // optional; stderr when empty
}

// NewLogger returns a console logger at info level, or debug when verbose.
func NewLogger(verbose bool) *Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	l, err := New(Options{Level: level})
	if err != nil {
		return Nop()
	}
	return l
}

func New(opts Options) (*Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(defaultString(opts.Level, "info")))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	out := os.Stderr
	sink := zapcore.Lock(os.Stderr)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		sink = zapcore.Lock(f)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(defaultString(opts.Format, "console")) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		if out != os.Stderr {
			_ = out.Close()
		}
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", opts.Format)
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}
	if out != os.Stderr {
		l.file = out
	}
	return l, nil
}

// Close flushes buffered entries and closes the log file, if one was opened.
// Child loggers share the file; close the root logger once, at exit.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.Sync()
	f := l.file
	l.file = nil
	return f.Close()
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Named returns a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}

// With returns a child logger carrying extra key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil || l.SugaredLogger == nil {
		return Nop()
	}
	return l
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

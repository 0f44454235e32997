// Package xlog provides the structured logger used across nexus. It wraps
// zap the way the teacher wraps its own log/v3 package: callers log with a
// message plus alternating key/value pairs instead of zap's typed fields,
// so call sites stay terse.
package xlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the handle every package logs through. Cloning it (With) is
// cheap and safe for concurrent use, matching ExecutionContext's cheap-clone
// contract.
type Logger struct {
	z *zap.SugaredLogger
}

var (
	root     *Logger
	rootOnce sync.Once
)

// Root returns the process-wide default logger, built lazily at INFO level
// writing JSON to stderr. Use New for a differently configured logger (e.g.
// in tests, where a development console encoder is friendlier).
func Root() *Logger {
	rootOnce.Do(func() {
		root = New(zapcore.InfoLevel, false)
	})
	return root
}

// New builds a Logger at the given level. consoleMode selects a
// human-readable encoder (tests, local dev); otherwise JSON is used (the
// production default, so log shipping doesn't need a separate parser).
func New(level zapcore.Level, consoleMode bool) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if consoleMode {
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return &Logger{z: zap.New(core).Sugar()}
}

// With returns a derived Logger carrying the given key/value pairs on every
// subsequent call, mirroring ExecutionContext's "mutation produces a new
// context, cheap to clone" rule.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.z.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) { l.z.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.z.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.z.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.z.Errorw(msg, kv...) }

// Sync flushes buffered log entries; call before process exit.
func (l *Logger) Sync() error { return l.z.Sync() }

package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the verbosity threshold applied to every logger created by this package.
type Level int

const (
	// LevelDebug enables all output including per-frame diagnostics.
	LevelDebug Level = iota

	// LevelInfo is the default level.
	LevelInfo

	// LevelWarn only reports warnings and errors.
	LevelWarn

	// LevelError only reports errors.
	LevelError
)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	root  = build(os.Stderr)
)

// New returns a named child of the process root logger. Loggers returned before
// a call to SetSink keep writing to the previous sink.
//
// Parameters:
//   - name: the subsystem name attached to every entry (e.g. "cluster")
//
// Returns:
//   - *zap.Logger: the named logger
func New(name string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(name)
}

// SetSink replaces the output of the root logger.
//
// Parameters:
//   - sink: the writer that receives formatted log entries
func SetSink(sink io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	root = build(sink)
}

// SetLevel changes the verbosity of every logger created by this package,
// including loggers handed out before the call.
//
// Parameters:
//   - l: the new Level
func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func build(sink io.Writer) *zap.Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(sink), level)
	return zap.New(core)
}

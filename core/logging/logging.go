// Package logging configures per-package zap loggers.
//
// Environment variables:
//
//	SYMOFFLOAD_LOG=<level>         default level of every package
//	SYMOFFLOAD_LOG_<pkg>=<level>   level of one package
//	SYMOFFLOAD_LOG_FORMAT=console  human-readable output instead of JSON
//
// Level letters are V, D, I, W, E, F; see PkgLevel.SetLevel.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var root = newRoot(os.Getenv("SYMOFFLOAD_LOG_FORMAT"), zapcore.Lock(os.Stderr))

func newRoot(format string, w zapcore.WriteSyncer) *zap.Logger {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format {
	case "console":
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		enc = zapcore.NewJSONEncoder(ec)
	}
	return zap.New(zapcore.NewCore(enc, w, zap.DebugLevel))
}

// Named creates a named logger that ignores package log level.
func Named(pkg string) *zap.Logger {
	return root.Named(pkg)
}

// New creates a logger filtered by the package log level.
// Declare it next to the package doc:
//
//	var logger = logging.New("pkg")
func New(pkg string) *zap.Logger {
	return Named(pkg).WithOptions(zap.IncreaseLevel(GetLevel(pkg).al))
}

// Sync flushes buffered log entries.
func Sync() error {
	return root.Sync()
}

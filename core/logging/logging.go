// Package logging configures zap loggers for tofino-tm packages.
//
// Each package creates its logger in the same .go file as its package docstring:
//
//	var logger = logging.New("Foo")
//
// Environment variables:
//
//	TMDRV_LOG_Foo  log level of package Foo
//	TMDRV_LOG      log level of packages without a specific setting
//	TMDRV_LOG_FORMAT  "console" for human-readable output, otherwise JSON
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var root = newRoot(os.Getenv("TMDRV_LOG_FORMAT"))

func newRoot(format string) *zap.Logger {
	ec := zap.NewProductionEncoderConfig()
	var enc zapcore.Encoder
	if format == "console" {
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		enc = zapcore.NewJSONEncoder(ec)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.DebugLevel))
}

// New creates a package logger filtered by the package log level.
func New(pkg string) *zap.Logger {
	return root.Named(pkg).WithOptions(zap.IncreaseLevel(GetLevel(pkg).al))
}

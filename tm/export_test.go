package tm

import (
	"go.uber.org/zap"
)

// ReplaceLogger substitutes the package logger for devices created afterwards.
func ReplaceLogger(l *zap.Logger) (restore func()) {
	old := logger
	logger = l
	return func() { logger = old }
}

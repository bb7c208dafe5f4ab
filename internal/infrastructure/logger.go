package infrastructure

import (
	"errors"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Production emits JSON at info, every
// other environment emits colored console output at debug. A non-empty level
// ("debug", "warn", ...) overrides either default.
func NewLogger(environment, level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.EncoderConfig.MessageKey = "message"

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(parsed)
	}

	return config.Build(
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("env", environment)),
	)
}

// SyncLogger flushes buffered entries. Syncing a terminal fails on some
// platforms, which is not worth reporting.
func SyncLogger(logger *zap.Logger) {
	var pathErr *os.PathError
	if err := logger.Sync(); err != nil && !errors.As(err, &pathErr) {
		logger.Error("Failed to sync logger", zap.Error(err))
	}
}

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the production JSON logger, or the console logger when development is set
func New(debugMode, development bool) (*zap.Logger, error) {
	if development {
		return NewDevelopmentLogger(debugMode)
	}
	return NewProductionLogger(debugMode)
}

// NewProductionLogger creates a production-ready logger with JSON encoding
func NewProductionLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = level(debugMode)
	config.Encoding = "json"
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	config.InitialFields = map[string]any{"service": "scam-hunter-api"}
	return config.Build()
}

// NewDevelopmentLogger creates a development logger with console encoding (for local dev)
func NewDevelopmentLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = level(debugMode)
	return config.Build()
}

// Sync flushes any buffered log entries. Safe to call with a nil logger.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

func level(debugMode bool) zap.AtomicLevel {
	if debugMode {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel)
}

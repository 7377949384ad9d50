package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger for the given level and format ("json" or
// "console"). An unknown level falls back to info.
func New(level, format string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// NewSugared is a convenience for components that log with the sugared
// keyed-field API.
func NewSugared(level, format string) *zap.SugaredLogger {
	return New(level, format).Sugar()
}

// ForSession returns a logger scoped to one call session.
func ForSession(log *zap.SugaredLogger, sessionID, roomID string) *zap.SugaredLogger {
	return log.With("session_id", sessionID, "room_id", roomID)
}

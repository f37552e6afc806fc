// Package logging owns the process-wide zap logger and the context
// plumbing that stamps every line with the session, room, and game
// mode it concerns. Handlers derive a context with WithSession/
// WithRoom/WithMode once and every log call below them carries the
// fields automatically.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	SessionIDKey     contextKey = "session_id"
	RoomCodeKey      contextKey = "room_code"
	GameModeKey      contextKey = "game_mode"
)

// Initialize builds the global logger once. Development mode gets a
// colored console encoder; production gets JSON with ISO-8601
// timestamps. level accepts the usual zap names ("debug", "info", ...)
// and falls back to info when empty or unparsable.
func Initialize(development bool, level string) error {
	var err error
	once.Do(func() {
		var config zap.Config
		if development {
			config = zap.NewDevelopmentConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config = zap.NewProductionConfig()
			config.EncoderConfig.TimeKey = "timestamp"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		if parsed, perr := zapcore.ParseLevel(level); perr == nil {
			config.Level = zap.NewAtomicLevelAt(parsed)
		}
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		logger, err = config.Build(zap.AddCallerSkip(1))
	})
	return err
}

// GetLogger returns the global logger, or a development fallback when
// Initialize has not run (tests, early boot).
func GetLogger() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// WithSession returns a context whose log lines carry the session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithRoom returns a context whose log lines carry the room code.
func WithRoom(ctx context.Context, roomCode string) context.Context {
	return context.WithValue(ctx, RoomCodeKey, roomCode)
}

// WithMode returns a context whose log lines carry the game mode.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, GameModeKey, mode)
}

// Info logs a message at InfoLevel with the context's fields attached.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Info(msg, appendContextFields(ctx, fields)...)
}

// Warn logs a message at WarnLevel with the context's fields attached.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, appendContextFields(ctx, fields)...)
}

// Error logs a message at ErrorLevel with the context's fields attached.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Error(msg, appendContextFields(ctx, fields)...)
}

// Fatal logs a message at FatalLevel and exits.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, appendContextFields(ctx, fields)...)
}

func appendContextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}

	for key, name := range map[contextKey]string{
		CorrelationIDKey: "correlation_id",
		SessionIDKey:     "session_id",
		RoomCodeKey:      "room_code",
		GameModeKey:      "game_mode",
	} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(name, v))
		}
	}
	fields = append(fields, zap.String("service", "corehost"))
	return fields
}

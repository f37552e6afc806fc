package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// resetLogger resets the global logger instance for testing
func resetLogger() {
	logger = nil
	once = sync.Once{}
}

func TestGetLogger_Fallback(t *testing.T) {
	resetLogger()
	l := GetLogger()
	assert.NotNil(t, l, "GetLogger should return a fallback logger if not initialized")
}

func TestInitializeIsIdempotent(t *testing.T) {
	resetLogger()
	assert.NoError(t, Initialize(true, "debug"))
	assert.NotNil(t, logger)

	l1 := logger
	assert.NoError(t, Initialize(false, "info"))
	assert.Equal(t, l1, logger)
}

func TestInitializeBadLevelFallsBack(t *testing.T) {
	resetLogger()
	assert.NoError(t, Initialize(true, "shouting"))
	assert.NotNil(t, logger)
}

func TestDomainContextFields(t *testing.T) {
	resetLogger()
	core, logs := observer.New(zap.InfoLevel)
	logger = zap.New(core)

	ctx := WithSession(context.Background(), "player_1700000000000_abc123de")
	ctx = WithRoom(ctx, "ABCDE")
	ctx = WithMode(ctx, "board")

	Info(ctx, "tile mined")

	assert.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "player_1700000000000_abc123de", fields["session_id"])
	assert.Equal(t, "ABCDE", fields["room_code"])
	assert.Equal(t, "board", fields["game_mode"])
	assert.Equal(t, "corehost", fields["service"])
}

func TestPlainContextOmitsDomainFields(t *testing.T) {
	resetLogger()
	core, logs := observer.New(zap.InfoLevel)
	logger = zap.New(core)

	Info(context.Background(), "boot")

	fields := logs.All()[0].ContextMap()
	_, hasSession := fields["session_id"]
	_, hasRoom := fields["room_code"]
	assert.False(t, hasSession)
	assert.False(t, hasRoom)
	assert.Equal(t, "corehost", fields["service"])
}

func TestHelperMethods(t *testing.T) {
	resetLogger()
	core, logs := observer.New(zap.DebugLevel)
	logger = zap.New(core)

	ctx := context.Background()
	Info(ctx, "info msg", zap.String("key", "val"))
	Warn(ctx, "warn msg")
	Error(ctx, "error msg")

	assert.Equal(t, 3, logs.Len())
	assert.Equal(t, zap.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, zap.WarnLevel, logs.All()[1].Level)
	assert.Equal(t, zap.ErrorLevel, logs.All()[2].Level)
}

func TestCorrelationIDRidesTheContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), CorrelationIDKey, "req-1")
	fields := appendContextFields(ctx, []zap.Field{})

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	assert.Equal(t, "req-1", enc.Fields["correlation_id"])
}

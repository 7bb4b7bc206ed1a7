package zapadapter

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextID(t *testing.T) {
	_, ok := IDFromContext(context.Background())
	require.False(t, ok)

	ctx := NewContextWithID(context.Background(), "c0ffee")
	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "c0ffee", id)
}

func TestLogTagsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core))

	ctx := NewContextWithID(context.Background(), "req-1")
	l.Log(ctx, pgx.LogLevelInfo, "Query", map[string]interface{}{"sql": "select 1"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, zapcore.InfoLevel, entry.Level)
	require.Equal(t, "Query", entry.Message)
	require.Equal(t, "req-1", entry.ContextMap()["request_id"])
	require.Equal(t, "select 1", entry.ContextMap()["sql"])
}

func TestLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core))

	l.Log(context.Background(), pgx.LogLevelTrace, "trace", nil)
	l.Log(context.Background(), pgx.LogLevelWarn, "warn", nil)
	l.Log(context.Background(), pgx.LogLevelError, "error", nil)

	all := logs.All()
	require.Len(t, all, 3)
	require.Equal(t, zapcore.DebugLevel, all[0].Level)
	require.Contains(t, all[0].ContextMap(), "pgx_level")
	require.Equal(t, zapcore.WarnLevel, all[1].Level)
	require.Equal(t, zapcore.ErrorLevel, all[2].Level)
}

func TestLogBelowLevelIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewLogger(zap.New(core))

	l.Log(context.Background(), pgx.LogLevelDebug, "debug", nil)
	require.Equal(t, 0, logs.Len())
}

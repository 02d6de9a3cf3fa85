package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func selectOrders() (string, int64) {
	return `SELECT * FROM "orders" WHERE "orders"."tenant_id" = 't1'`, 3
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info)
	newLogger, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.Equal(t, gormlogger.Warn, newLogger.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		opts    []GormLoggerOption
		begin   time.Time
		err     error
		wantMsg string
	}{
		{"error", gormlogger.Error, nil, time.Now(), errors.New("boom"), "SQL Error"},
		{"record not found ignored", gormlogger.Error, nil, time.Now(), gormlogger.ErrRecordNotFound, ""},
		{"slow query", gormlogger.Warn, []GormLoggerOption{WithSlowThreshold(time.Nanosecond)}, time.Now().Add(-time.Second), nil, "SLOW SQL"},
		{"normal query", gormlogger.Info, nil, time.Now(), nil, "SQL Query"},
		{"silent", gormlogger.Silent, nil, time.Now(), errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gormLog := NewGormLogger(zap.New(core), tt.level, tt.opts...)

			gormLog.Trace(context.Background(), tt.begin, selectOrders, tt.err)

			if tt.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			require.Len(t, recorded.All(), 1)
			assert.Contains(t, recorded.All()[0].Message, tt.wantMsg)
		})
	}
}

func TestGormLogger_Trace_WithRequestContext(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info)

	gormLog.Trace(boundContext(t, "t1", "u1", "test-req-id"), time.Now(), selectOrders, nil)

	require.Len(t, recorded.All(), 1)
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "test-req-id", fields["request_id"])
	assert.Equal(t, "t1", fields["tenant_id"])
	assert.Contains(t, fields["sql"], "tenant_id")
}

func TestGormLogger_WithoutSQL(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info, WithoutSQL())

	gormLog.Trace(context.Background(), time.Now(), selectOrders, nil)

	require.Len(t, recorded.All(), 1)
	_, hasSQL := recorded.All()[0].ContextMap()["sql"]
	assert.False(t, hasSQL)
}

func TestGormLogger_Messages(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Warn)

	gormLog.Info(context.Background(), "suppressed %d", 1)
	gormLog.Warn(context.Background(), "warn %s", "x")
	gormLog.Error(boundContext(t, "t1", "", "r1"), "error %s", "y")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "warn x", logs[0].Message)
	assert.Equal(t, "t1", logs[1].ContextMap()["tenant_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))

	var _ gormlogger.Interface = NewGormLogger(zap.NewNop(), gormlogger.Info)
}

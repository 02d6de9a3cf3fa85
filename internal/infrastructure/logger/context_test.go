package logger

import (
	"context"
	"testing"

	"github.com/mise/backend/internal/domain/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func boundContext(t *testing.T, tenantID, userID, requestID string) context.Context {
	t.Helper()
	rc, err := tenancy.NewRequestContext(tenantID, userID, requestID)
	require.NoError(t, err)
	ctx, err := tenancy.WithRequestContext(context.Background(), rc)
	require.NoError(t, err)
	return ctx
}

func fieldMap(entry observer.LoggedEntry) map[string]string {
	out := make(map[string]string)
	for _, f := range entry.Context {
		out[f.Key] = f.String
	}
	return out
}

func TestWithContext(t *testing.T) {
	zapLogger := zap.NewExample()
	ctx := WithContext(context.Background(), zapLogger)
	assert.Same(t, zapLogger, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	//nolint:staticcheck // nil context is tolerated
	assert.NotNil(t, FromContext(nil))
}

func TestRequestFields(t *testing.T) {
	assert.Empty(t, RequestFields(context.Background()))

	ctx := boundContext(t, "t1", "", "req-1")
	fields := RequestFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "tenant_id", fields[0].Key)
	assert.Equal(t, "request_id", fields[1].Key)

	ctx = boundContext(t, "t1", "u1", "req-1")
	assert.Len(t, RequestFields(ctx), 3)
}

func TestContextLogger_EnrichesWithRequestContext(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(boundContext(t, "t1", "u1", "req-9"), zap.New(core))

	L(ctx).Warn("routing mismatch", zap.String("hint", "other"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := fieldMap(logs[0])
	assert.Equal(t, "t1", fields["tenant_id"])
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "other", fields["hint"])
}

func TestContextLogger_TraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	WithLogger(ctx, zap.New(core)).Info("hello")

	require.Len(t, recorded.All(), 1)
	fields := fieldMap(recorded.All()[0])
	assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
	assert.Equal(t, sc.SpanID().String(), fields["span_id"])
	assert.Equal(t, sc.TraceID().String(), GetTraceID(ctx))
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestContextLogger_With(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := boundContext(t, "t2", "u2", "req-2")

	WithLogger(ctx, zap.New(core)).With(zap.String("component", "gate")).Info("x")

	fields := fieldMap(recorded.All()[0])
	assert.Equal(t, "gate", fields["component"])
	assert.Equal(t, "t2", fields["tenant_id"])
}

func TestContextLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		WithLogger(context.Background(), nil).Info("dropped")
	})
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer of the application services
const TracerName = "mise-backend"

// Span attribute keys shared by the tenancy services
const (
	SpanAttrTenantID  = "tenant_id"
	SpanAttrRequestID = "request_id"
	SpanAttrUserID    = "user_id"
	SpanAttrOrderID   = "order_id"
	SpanAttrMenuItem  = "menu_item_id"
)

// SpanOption configures a service span
type SpanOption func(*[]attribute.KeyValue)

// WithAttribute adds a string attribute to the span
func WithAttribute(key, value string) SpanOption {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, attribute.String(key, value))
	}
}

// StartServiceSpan starts an internal span named "{service}.{method}", e.g.
// "order.void". The caller ends it.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "order", "void")
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	for _, opt := range opts {
		opt(&attrs)
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks span failed with err
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package log

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ SpanEventRecorder = (*OtelSpanEventRecorder)(nil)

// Used when a value is missing for a key in attribute pairs.
const missingAttributeValue = "MISSING"

// OtelSpanEventRecorder mirrors log entries onto an OpenTelemetry span,
// converting key-value pairs into span attributes.
type OtelSpanEventRecorder struct {
	span trace.Span
}

// NewOtelSpanEventRecorder wraps the given span in a SpanEventRecorder.
func NewOtelSpanEventRecorder(span trace.Span) *OtelSpanEventRecorder {
	return &OtelSpanEventRecorder{span: span}
}

// TraceID returns the trace ID of the span as a string.
func (r *OtelSpanEventRecorder) TraceID() string {
	return r.span.SpanContext().TraceID().String()
}

// SpanID returns the span ID of the span as a string.
func (r *OtelSpanEventRecorder) SpanID() string {
	return r.span.SpanContext().SpanID().String()
}

// RecordEvent records an event on the span with the given name and
// attributes.
func (r *OtelSpanEventRecorder) RecordEvent(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(kvToAttributes(keysAndValues...)...))
}

// RecordError records an error event on the span and sets the span status
// to error.
func (r *OtelSpanEventRecorder) RecordError(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(kvToAttributes(keysAndValues...)...))
	r.span.SetStatus(codes.Error, name)
}

func kvToAttributes(keysAndValues ...any) []attribute.KeyValue {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = append(keysAndValues, missingAttributeValue)
	}

	attrs := make([]attribute.KeyValue, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}

		switch v := keysAndValues[i+1].(type) {
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case fmt.Stringer:
			attrs = append(attrs, attribute.String(key, v.String()))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}

	return attrs
}

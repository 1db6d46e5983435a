package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span as failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetDenied records a refused transition. The span keeps an unset status: a refusal is an answer,
// not a failure.
func SetDenied(span trace.Span, reason string) {
	span.SetAttributes(attribute.Bool(DeniedKey, true))
	span.AddEvent("transition_denied", trace.WithAttributes(attribute.String(ReasonKey, reason)))
}

// Package otelhook records one OpenTelemetry span per Dify API request.
//
//	tp := sdktrace.NewTracerProvider(...)
//	client, err := dify.New(key, dify.WithTelemetry(otelhook.New(tp)))
//
// Streaming requests end their span when the stream is closed, so the span
// covers the whole event stream.
package otelhook

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/dify-go/core"
)

// InstrumentationName identifies the tracer used by Hook.
const InstrumentationName = "github.com/petal-labs/dify-go/telemetry/otelhook"

// Attribute keys set on request spans.
const (
	AttrMethod    = attribute.Key("http.request.method")
	AttrPath      = attribute.Key("url.path")
	AttrRoute     = attribute.Key("http.route")
	AttrStatus    = attribute.Key("http.response.status_code")
	AttrRequestID = attribute.Key("dify.request_id")
	AttrStreaming = attribute.Key("dify.streaming")
	AttrErrorType = attribute.Key("error.type")
)

// Hook implements core.TelemetryHook. Spans in flight are keyed by call ID;
// request IDs may be chosen by callers and are not unique.
type Hook struct {
	tracer trace.Tracer
	spans  sync.Map // call ID -> trace.Span
}

// New returns a hook that creates spans with tp, or with the global tracer
// provider when tp is nil.
func New(tp trace.TracerProvider) *Hook {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Hook{tracer: tp.Tracer(InstrumentationName)}
}

// OnRequestStart opens a client span for the request.
func (h *Hook) OnRequestStart(e core.RequestStartEvent) {
	h.spans.Store(e.CallID, h.start(e))
}

// OnRequestEnd closes the request's span, recording its status and error.
// An end without a matching start gets a span of its own.
func (h *Hook) OnRequestEnd(e core.RequestEndEvent) {
	var span trace.Span
	if v, ok := h.spans.LoadAndDelete(e.CallID); ok {
		span = v.(trace.Span)
	} else {
		span = h.start(core.RequestStartEvent{
			CallID:    e.CallID,
			Method:    e.Method,
			Path:      e.Path,
			Route:     e.Route,
			RequestID: e.RequestID,
			Streaming: e.Streaming,
			Start:     e.Start,
		})
	}

	if e.Status > 0 {
		span.SetAttributes(AttrStatus.Int(e.Status))
	}
	if e.Err != nil {
		kind := e.Kind().String()
		span.SetAttributes(AttrErrorType.String(kind))
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, kind)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.End))
}

func (h *Hook) start(e core.RequestStartEvent) trace.Span {
	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrMethod.String(e.Method),
			AttrPath.String(e.Path),
			AttrRoute.String(e.Label()),
			AttrRequestID.String(e.RequestID),
			AttrStreaming.Bool(e.Streaming),
		),
	}
	if !e.Start.IsZero() {
		opts = append(opts, trace.WithTimestamp(e.Start))
	}
	_, span := h.tracer.Start(context.Background(), "dify "+e.Method+" "+e.Label(), opts...)
	return span
}

var _ core.TelemetryHook = (*Hook)(nil)

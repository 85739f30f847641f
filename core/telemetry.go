package core

import (
	"context"
	"log/slog"
	"time"
)

// TelemetryHook receives notifications about request lifecycle events.
// Implementations can use this for logging, metrics, tracing, etc.
//
// # Security Considerations
//
// Events carry operational metadata only: method, path, route, request ID,
// status, timing and error kind. API keys, queries, answers and uploaded file contents
// are never included, so events can be logged or exported without review.
// Keep it that way when adding fields.
//
// Hooks are called synchronously from the goroutine issuing the request and
// must not block.
type TelemetryHook interface {
	// OnRequestStart is called before a request is written to the wire.
	OnRequestStart(e RequestStartEvent)

	// OnRequestEnd is called once per started request. For buffered calls this
	// is after the body was read; for streaming calls it is when the stream
	// body is closed.
	OnRequestEnd(e RequestEndEvent)
}

// Label returns the route template, or the path when no route was set.
// Metrics should be labelled by it rather than by the concrete path.
func (e RequestStartEvent) Label() string {
	if e.Route != "" {
		return e.Route
	}
	return e.Path
}

// Label returns the route template, or the path when no route was set.
func (e RequestEndEvent) Label() string {
	if e.Route != "" {
		return e.Route
	}
	return e.Path
}

// RequestStartEvent contains metadata about a starting request.
type RequestStartEvent struct {
	CallID    uint64    // unique per call within the process
	Method    string    // HTTP method
	Path      string    // API path, e.g. "/v1/conversations/8f1c.../name"
	Route     string    // path template, e.g. "/v1/conversations/{id}/name"
	RequestID string    // X-Request-Id sent with the request
	Streaming bool      // true for text/event-stream calls
	Start     time.Time // when the request started
}

// RequestEndEvent contains metadata about a completed request.
type RequestEndEvent struct {
	CallID    uint64
	Method    string
	Path      string
	Route     string
	RequestID string
	Streaming bool
	Status    int       // HTTP status, 0 if no response was received
	Start     time.Time // when the request started
	End       time.Time // when the request completed
	Err       error     // error if the request failed, nil on success
}

// Duration returns the elapsed time for the request.
func (e RequestEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Kind returns the error kind of the request, or KindUnknown when Err is nil.
func (e RequestEndEvent) Kind() ErrorKind {
	if e.Err == nil {
		return KindUnknown
	}
	return KindOf(e.Err)
}

// NoopTelemetryHook is a no-op implementation of TelemetryHook.
type NoopTelemetryHook struct{}

// OnRequestStart does nothing.
func (NoopTelemetryHook) OnRequestStart(RequestStartEvent) {}

// OnRequestEnd does nothing.
func (NoopTelemetryHook) OnRequestEnd(RequestEndEvent) {}

// MultiHook fans events out to several hooks in order.
type MultiHook []TelemetryHook

// OnRequestStart forwards to every hook.
func (m MultiHook) OnRequestStart(e RequestStartEvent) {
	for _, h := range m {
		h.OnRequestStart(e)
	}
}

// OnRequestEnd forwards to every hook.
func (m MultiHook) OnRequestEnd(e RequestEndEvent) {
	for _, h := range m {
		h.OnRequestEnd(e)
	}
}

// LogHook writes request lifecycle events to a structured logger.
// Starts are logged at debug level, successful ends at info and failures at warn.
type LogHook struct {
	Logger *slog.Logger
}

// NewLogHook returns a LogHook for logger, or slog.Default() when nil.
func NewLogHook(logger *slog.Logger) *LogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHook{Logger: logger}
}

// OnRequestStart logs the start of a request.
func (h *LogHook) OnRequestStart(e RequestStartEvent) {
	h.Logger.LogAttrs(context.Background(), slog.LevelDebug, "request started",
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.String("request_id", e.RequestID),
		slog.Bool("streaming", e.Streaming),
	)
}

// OnRequestEnd logs the outcome of a request.
func (h *LogHook) OnRequestEnd(e RequestEndEvent) {
	attrs := []slog.Attr{
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.String("request_id", e.RequestID),
		slog.Int("status", e.Status),
		slog.Duration("duration", e.Duration()),
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("kind", e.Kind().String()), slog.Any("error", e.Err))
		h.Logger.LogAttrs(context.Background(), slog.LevelWarn, "request failed", attrs...)
		return
	}
	h.Logger.LogAttrs(context.Background(), slog.LevelInfo, "request completed", attrs...)
}

// Compile-time checks.
var (
	_ TelemetryHook = NoopTelemetryHook{}
	_ TelemetryHook = MultiHook(nil)
	_ TelemetryHook = (*LogHook)(nil)
)

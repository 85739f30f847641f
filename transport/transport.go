// Package transport sends requests to the Dify API. It owns URL resolution,
// authentication headers, body encoding, timeouts, client-side pacing and
// telemetry, and maps every failure to a *core.ServiceError.
//
// A Transport is safe for concurrent use. Its configuration is validated and
// copied once by New and never modified afterwards.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/dify-go/core"
	"github.com/petal-labs/dify-go/internal/normalize"
)

// HeaderRequestID carries the per-call identifier.
const HeaderRequestID = "X-Request-Id"

const (
	// maxBufferedBody bounds a buffered 2xx body.
	maxBufferedBody = 64 << 20

	// maxErrorBody bounds how much of a non-2xx body is read for mapping.
	maxErrorBody = 64 << 10
)

// Transport issues HTTP calls against a single API base URL.
type Transport struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New validates cfg and returns a Transport using a copy of it.
func New(cfg Config) (*Transport, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client, err = newHTTPClient(cfg.TLSMode)
		if err != nil {
			return nil, err
		}
	}

	return &Transport{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger,
	}, nil
}

// Config returns a copy of the validated configuration.
func (t *Transport) Config() Config {
	cfg := t.cfg
	cfg.Headers = cfg.Headers.Clone()
	cfg.RequestHooks = append([]RequestHook(nil), cfg.RequestHooks...)
	return cfg
}

// Logger returns the configured logger.
func (t *Transport) Logger() *slog.Logger {
	return t.logger
}

// MaxEventSize returns the bound on a single stream event.
func (t *Transport) MaxEventSize() int {
	return t.cfg.MaxEventSize
}

// callIDs numbers calls for telemetry hooks that track them in flight.
var callIDs atomic.Uint64

// call tracks one request for telemetry.
type call struct {
	hook  core.TelemetryHook
	start core.RequestStartEvent
	once  sync.Once
}

func (c *call) finish(status int, err error) {
	c.once.Do(func() {
		c.hook.OnRequestEnd(core.RequestEndEvent{
			CallID:    c.start.CallID,
			Method:    c.start.Method,
			Path:      c.start.Path,
			Route:     c.start.Route,
			RequestID: c.start.RequestID,
			Streaming: c.start.Streaming,
			Status:    status,
			Start:     c.start.Start,
			End:       time.Now(),
			Err:       err,
		})
	})
}

// roundTrip waits on the limiter, builds and sends the request. On error the
// telemetry end event has already been emitted.
func (t *Transport) roundTrip(ctx context.Context, req *Request, streaming bool) (*http.Response, *call, error) {
	requestID := ""
	if req.Header != nil {
		requestID = req.Header.Get(HeaderRequestID)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if t.cfg.Limiter != nil {
		if err := t.cfg.Limiter.Wait(ctx); err != nil {
			return nil, nil, normalize.FromTransport(fmt.Errorf("rate limiter: %w", err), requestID)
		}
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, nil, err
	}

	httpReq, err := t.newHTTPRequest(ctx, req, body, requestID, streaming)
	if err != nil {
		body.discard()
		return nil, nil, err
	}

	route := req.Route
	if route == "" {
		route = req.Path
	}
	c := &call{
		hook: t.cfg.Telemetry,
		start: core.RequestStartEvent{
			CallID:    callIDs.Add(1),
			Method:    httpReq.Method,
			Path:      req.Path,
			Route:     route,
			RequestID: requestID,
			Streaming: streaming,
			Start:     time.Now(),
		},
	}
	c.hook.OnRequestStart(c.start)
	t.logger.LogAttrs(ctx, slog.LevelDebug, "sending request",
		slog.String("method", httpReq.Method),
		slog.String("path", req.Path),
		slog.String("request_id", requestID),
		slog.Bool("streaming", streaming),
	)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if bodyErr := body.err(); bodyErr != nil {
			var svcErr *core.ServiceError
			if errors.As(bodyErr, &svcErr) {
				err = bodyErr
			}
		}
		if errors.Is(context.Cause(ctx), errIdle) {
			err = errIdle
		}
		mapped := normalize.FromTransport(err, requestID)
		c.finish(0, mapped)
		return nil, nil, mapped
	}

	// The server may answer a body it only partly received.
	if bodyErr := body.err(); bodyErr != nil {
		var svcErr *core.ServiceError
		if errors.As(bodyErr, &svcErr) {
			_ = resp.Body.Close()
			c.finish(resp.StatusCode, svcErr)
			return nil, nil, svcErr
		}
	}

	t.logger.LogAttrs(ctx, slog.LevelDebug, "received response",
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.String("content_type", resp.Header.Get("Content-Type")),
	)
	return resp, c, nil
}

func encodeBody(b Body) (*encodedBody, error) {
	if b == nil {
		return &encodedBody{}, nil
	}
	return b.encode()
}

func (t *Transport) newHTTPRequest(ctx context.Context, req *Request, body *encodedBody, requestID string, streaming bool) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := t.cfg.BaseURL + path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body.reader)
	if err != nil {
		return nil, normalize.Invalid("path", "is not a valid request target: "+err.Error())
	}

	h := httpReq.Header
	h.Set("Authorization", t.cfg.APIKey.Bearer())
	h.Set("Cache-Control", "no-cache")
	h.Set("User-Agent", t.cfg.UserAgent)
	h.Set(HeaderRequestID, requestID)
	if streaming {
		h.Set("Accept", "text/event-stream")
	} else {
		h.Set("Accept", "application/json")
	}
	if body.contentType != "" {
		h.Set("Content-Type", body.contentType)
	}
	for key, values := range t.cfg.Headers {
		h[key] = append([]string(nil), values...)
	}
	for key, values := range req.Header {
		h[key] = append([]string(nil), values...)
	}

	for _, hook := range t.cfg.RequestHooks {
		if err := hook(httpReq); err != nil {
			var svcErr *core.ServiceError
			if errors.As(err, &svcErr) {
				return nil, svcErr
			}
			return nil, &core.ServiceError{
				Kind:      core.KindUnknown,
				Message:   "request hook: " + err.Error(),
				RequestID: requestID,
				Err:       err,
			}
		}
	}
	return httpReq, nil
}

// Send issues req and returns the response whatever its status. Timeout
// bounds the call until the body is closed.
func (t *Transport) Send(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := t.withTimeout(ctx)
	resp, c, err := t.roundTrip(ctx, req, false)
	if err != nil {
		cancel()
		return nil, err
	}

	requestID := c.start.RequestID
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body: &trackedBody{
			r:         resp.Body,
			call:      c,
			status:    resp.StatusCode,
			requestID: requestID,
			cancel:    cancel,
		},
		RequestID: requestID,
	}, nil
}

// Do issues a buffered call and decodes a 2xx JSON body into out. Non-2xx
// responses are mapped to a ServiceError. An empty body leaves out untouched.
func (t *Transport) Do(ctx context.Context, req *Request, out any) error {
	buf, c, err := t.buffered(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(buf.Body)) == 0 {
		c.finish(buf.StatusCode, nil)
		return nil
	}
	if err := json.Unmarshal(buf.Body, out); err != nil {
		mapped := normalize.Decode(err, buf.Body, buf.RequestID)
		mapped.HTTPStatus = buf.StatusCode
		c.finish(buf.StatusCode, mapped)
		return mapped
	}
	c.finish(buf.StatusCode, nil)
	return nil
}

// DoRaw issues a buffered call and returns the 2xx body bytes undecoded.
func (t *Transport) DoRaw(ctx context.Context, req *Request) (*BufferedResponse, error) {
	buf, c, err := t.buffered(ctx, req)
	if err != nil {
		return nil, err
	}
	c.finish(buf.StatusCode, nil)
	return buf, nil
}

// buffered reads a whole response within Timeout. The caller finishes the
// call on success.
func (t *Transport) buffered(ctx context.Context, req *Request) (*BufferedResponse, *call, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	resp, c, err := t.roundTrip(ctx, req, false)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	requestID := c.start.RequestID

	if !isSuccess(resp.StatusCode) {
		mapped := t.mapErrorBody(resp, requestID)
		c.finish(resp.StatusCode, mapped)
		return nil, nil, mapped
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBody+1))
	if err != nil {
		mapped := normalize.FromTransport(fmt.Errorf("read body: %w", err), requestID)
		mapped.HTTPStatus = resp.StatusCode
		c.finish(resp.StatusCode, mapped)
		return nil, nil, mapped
	}
	if len(data) > maxBufferedBody {
		mapped := normalize.Decode(fmt.Errorf("response body exceeds %d bytes", maxBufferedBody), nil, requestID)
		mapped.HTTPStatus = resp.StatusCode
		c.finish(resp.StatusCode, mapped)
		return nil, nil, mapped
	}

	return &BufferedResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		RequestID:  requestID,
	}, c, nil
}

// Stream opens a streaming call. Timeout bounds the wait for response
// headers, then the silence between body reads. Non-2xx responses are mapped
// to a ServiceError and no body is returned. Closing the returned body
// releases the connection.
func (t *Transport) Stream(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	d := newDeadline(t.cfg.Timeout, cancel)

	resp, c, err := t.roundTrip(ctx, req, true)
	d.disarm()
	if err != nil {
		cancel(nil)
		return nil, err
	}
	requestID := c.start.RequestID

	if !isSuccess(resp.StatusCode) {
		mapped := t.mapErrorBody(resp, requestID)
		resp.Body.Close()
		cancel(nil)
		c.finish(resp.StatusCode, mapped)
		return nil, mapped
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body: &trackedBody{
			r:         &idleReader{r: resp.Body, ctx: ctx, d: d},
			ctx:       ctx,
			call:      c,
			status:    resp.StatusCode,
			requestID: requestID,
			cancel:    func() { cancel(nil) },
		},
		RequestID: requestID,
	}, nil
}

func (t *Transport) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.cfg.Timeout)
}

// mapErrorBody reads a bounded prefix of a non-2xx body and maps it.
func (t *Transport) mapErrorBody(resp *http.Response, requestID string) *core.ServiceError {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && len(data) == 0 {
		mapped := normalize.FromTransport(fmt.Errorf("read error body: %w", err), requestID)
		mapped.HTTPStatus = resp.StatusCode
		return mapped
	}
	mapped := normalize.FromResponse(resp.StatusCode, data, requestID)
	t.logger.Debug("request failed",
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.String("kind", mapped.Kind.String()),
		slog.String("code", mapped.Code),
	)
	return mapped
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// trackedBody emits the telemetry end event and releases the call context
// when closed. Close may run on another goroutine than Read.
type trackedBody struct {
	r         io.ReadCloser
	ctx       context.Context
	call      *call
	status    int
	requestID string
	cancel    context.CancelFunc

	mu      sync.Mutex
	readErr error
	eof     bool
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil {
		b.mu.Lock()
		if err == io.EOF {
			b.eof = true
		} else if b.readErr == nil {
			b.readErr = err
		}
		b.mu.Unlock()
	}
	return n, err
}

func (b *trackedBody) Close() error {
	return b.CloseWithError(nil)
}

// CloseWithError closes the body and reports cause as the outcome of the
// call. With a nil cause the outcome is the first read failure, or the
// call context's error when it was cancelled before EOF.
func (b *trackedBody) CloseWithError(cause error) error {
	// cancel below sets the context error, so read it first.
	ctxErr := b.ctx.Err()
	if ctxErr != nil {
		ctxErr = context.Cause(b.ctx)
	}
	err := b.r.Close()
	b.cancel()

	b.mu.Lock()
	readErr, eof := b.readErr, b.eof
	b.mu.Unlock()

	var endErr error
	switch {
	case cause != nil:
		endErr = normalize.FromTransport(cause, b.requestID)
	case readErr != nil:
		endErr = normalize.FromTransport(readErr, b.requestID)
	case ctxErr != nil && !eof:
		endErr = normalize.FromTransport(ctxErr, b.requestID)
	}
	b.call.finish(b.status, endErr)
	return err
}

package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/petal-labs/dify-go/internal/normalize"
)

// Request describes one outgoing call. Path is relative to the base URL,
// e.g. "/v1/chat-messages". Route is the path template reported to
// telemetry, e.g. "/v1/conversations/{id}"; it defaults to Path.
type Request struct {
	Method string
	Path   string
	Route  string
	Query  url.Values
	Header http.Header
	Body   Body
}

// Response is a raw response with a live body. The body must be read to EOF
// or closed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	// RequestID is the X-Request-Id sent with the call.
	RequestID string
}

// BufferedResponse is a fully read 2xx response.
type BufferedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Body is a request payload. It is implemented by JSONBody and *MultipartBody.
type Body interface {
	encode() (*encodedBody, error)
}

// encodedBody is a body ready to attach to an http.Request.
type encodedBody struct {
	reader      io.Reader
	contentType string

	// failure returns the error that stopped a streamed body, if any.
	failure func() error
}

func (e *encodedBody) err() error {
	if e == nil || e.failure == nil {
		return nil
	}
	return e.failure()
}

// discard releases a streamed body that will never be sent.
func (e *encodedBody) discard() {
	if c, ok := e.reader.(io.Closer); ok {
		c.Close()
	}
}

// JSONBody encodes Value as a JSON document.
type JSONBody struct {
	Value any
}

func (b JSONBody) encode() (*encodedBody, error) {
	data, err := json.Marshal(b.Value)
	if err != nil {
		return nil, normalize.Invalid("body", "cannot be encoded as JSON: "+err.Error())
	}
	return &encodedBody{
		reader:      bytes.NewReader(data),
		contentType: "application/json; charset=utf-8",
	}, nil
}

// bodyError records the first error raised while streaming a body.
type bodyError struct {
	mu  sync.Mutex
	err error
}

func (b *bodyError) set(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

func (b *bodyError) get() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}


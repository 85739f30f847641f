// Package normalize maps transport outcomes and service error payloads to
// *core.ServiceError values. It never retries.
package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"unicode/utf8"

	"github.com/petal-labs/dify-go/core"
)

// MaxExcerpt bounds how much of an offending payload is copied into a decode
// error message.
const MaxExcerpt = 512

// CodeInvalidParam is the code used for client-side validation failures. It
// matches the code the service returns for the same class of error.
const CodeInvalidParam = "invalid_param"

// errorPayload is the service error envelope: {"code":"...","message":"...","status":400}.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// FromResponse converts a non-2xx buffered response into a ServiceError.
// The kind follows the status range when the body is a service error payload;
// otherwise the error is a Decode error carrying a bounded excerpt of the body.
func FromResponse(status int, body []byte, requestID string) *core.ServiceError {
	var payload errorPayload
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &payload) != nil ||
		(payload.Code == "" && payload.Message == "") {
		return &core.ServiceError{
			Kind:       core.KindDecode,
			HTTPStatus: status,
			RequestID:  requestID,
			Message:    fmt.Sprintf("unparseable error body (status %d): %s", status, Excerpt(body)),
		}
	}

	return &core.ServiceError{
		Kind:       KindForStatus(status),
		HTTPStatus: status,
		Code:       payload.Code,
		Message:    payload.Message,
		RequestID:  requestID,
	}
}

// FromStreamError converts an error event received on an open stream. A missing
// status means the service failed after it had already answered 200.
func FromStreamError(status int, code, message, requestID string) *core.ServiceError {
	kind := core.KindServiceUnavailable
	if status != 0 {
		kind = KindForStatus(status)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &core.ServiceError{
		Kind:       kind,
		HTTPStatus: status,
		Code:       code,
		Message:    message,
		RequestID:  requestID,
	}
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) core.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.KindAuth
	case status == http.StatusTooManyRequests:
		return core.KindRateLimited
	case status >= 400 && status < 500:
		return core.KindBadRequest
	case status >= 500 && status < 600:
		return core.KindServiceUnavailable
	default:
		return core.KindUnknown
	}
}

// FromTransport wraps a failure that happened before a status was received,
// or while reading a body. Deadline and net timeouts become Timeout errors;
// everything else is a Network error.
func FromTransport(err error, requestID string) *core.ServiceError {
	var svcErr *core.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if IsTimeout(err) {
		return Timeout(err, requestID)
	}
	return Network(err, requestID)
}

// Network builds a Network error around cause.
func Network(cause error, requestID string) *core.ServiceError {
	return &core.ServiceError{
		Kind:      core.KindNetwork,
		Message:   cause.Error(),
		RequestID: requestID,
		Err:       cause,
	}
}

// Timeout builds a Timeout error around cause.
func Timeout(cause error, requestID string) *core.ServiceError {
	return &core.ServiceError{
		Kind:      core.KindTimeout,
		Message:   cause.Error(),
		RequestID: requestID,
		Err:       cause,
	}
}

// IsTimeout reports whether err is a deadline or a net timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Decode wraps a payload decode failure with a bounded excerpt of the payload.
func Decode(err error, payload []byte, requestID string) *core.ServiceError {
	msg := err.Error()
	if len(payload) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, Excerpt(payload))
	}
	return &core.ServiceError{
		Kind:      core.KindDecode,
		Message:   msg,
		RequestID: requestID,
		Err:       err,
	}
}

// Invalid reports a request that failed client-side validation.
func Invalid(field, reason string) *core.ServiceError {
	return &core.ServiceError{
		Kind:    core.KindBadRequest,
		Code:    CodeInvalidParam,
		Message: field + " " + reason,
	}
}

// Excerpt returns at most MaxExcerpt bytes of b, cut on a rune boundary.
func Excerpt(b []byte) string {
	if len(b) <= MaxExcerpt {
		return string(b)
	}
	cut := MaxExcerpt
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "...(truncated)"
}

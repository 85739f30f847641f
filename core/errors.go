package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a ServiceError.
type ErrorKind int

// Error kinds, in the order callers usually switch on them.
const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindTimeout
	KindAuth
	KindRateLimited
	KindBadRequest
	KindServiceUnavailable
	KindDecode
)

// String returns the lower-case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindBadRequest:
		return "bad_request"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Sentinel returns the sentinel error matched by errors.Is for this kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindAuth:
		return ErrAuth
	case KindRateLimited:
		return ErrRateLimited
	case KindBadRequest:
		return ErrBadRequest
	case KindServiceUnavailable:
		return ErrServiceUnavailable
	case KindDecode:
		return ErrDecode
	default:
		return ErrUnknown
	}
}

// Sentinel errors for classification.
var (
	ErrUnknown            = errors.New("unknown error")
	ErrNetwork            = errors.New("network error")
	ErrTimeout            = errors.New("timeout")
	ErrAuth               = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrBadRequest         = errors.New("bad request")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrDecode             = errors.New("decode error")
)

// ServiceError is the single error type returned by the transport, the stream
// decoder and every endpoint. It is built once and never modified.
type ServiceError struct {
	Kind ErrorKind

	// HTTPStatus is the response status, or 0 when no response was received.
	HTTPStatus int

	// Code and Message come from the service error payload when one was parsed.
	Code    string
	Message string

	// RequestID is the X-Request-Id sent with the failing call, if any.
	RequestID string

	// Err is the underlying cause, such as a net.Error or context.Canceled.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString("dify: ")
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	var details []string
	if e.HTTPStatus != 0 {
		details = append(details, fmt.Sprintf("status=%d", e.HTTPStatus))
	}
	if e.Code != "" {
		details = append(details, "code="+e.Code)
	}
	if e.RequestID != "" {
		details = append(details, "request_id="+e.RequestID)
	}
	if len(details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(details, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chaining.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *ServiceError) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

// KindOf returns the kind of the first ServiceError in err's chain.
// Errors that are not ServiceErrors report KindUnknown.
func KindOf(err error) ErrorKind {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindUnknown
}

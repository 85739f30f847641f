package normalize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petal-labs/dify-go/core"
)

func TestFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind core.ErrorKind
		wantCode string
		wantMsg  string
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"code":"unauthorized","message":"Access token is invalid","status":401}`,
			wantKind: core.KindAuth,
			wantCode: "unauthorized",
			wantMsg:  "Access token is invalid",
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `{"code":"forbidden","message":"nope"}`,
			wantKind: core.KindAuth,
			wantCode: "forbidden",
			wantMsg:  "nope",
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"code":"rate_limit_exceeded","message":"slow down"}`,
			wantKind: core.KindRateLimited,
			wantCode: "rate_limit_exceeded",
			wantMsg:  "slow down",
		},
		{
			name:     "not found is a bad request",
			status:   http.StatusNotFound,
			body:     `{"code":"not_found","message":"Conversation Not Exists."}`,
			wantKind: core.KindBadRequest,
			wantCode: "not_found",
			wantMsg:  "Conversation Not Exists.",
		},
		{
			name:     "invalid param",
			status:   http.StatusBadRequest,
			body:     `{"code":"invalid_param","message":"query is required","status":400}`,
			wantKind: core.KindBadRequest,
			wantCode: "invalid_param",
			wantMsg:  "query is required",
		},
		{
			name:     "server error",
			status:   http.StatusBadGateway,
			body:     `{"code":"internal_server_error","message":"upstream died"}`,
			wantKind: core.KindServiceUnavailable,
			wantCode: "internal_server_error",
			wantMsg:  "upstream died",
		},
		{
			name:     "redirect is unknown",
			status:   http.StatusFound,
			body:     `{"code":"moved","message":"elsewhere"}`,
			wantKind: core.KindUnknown,
			wantCode: "moved",
			wantMsg:  "elsewhere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromResponse(tt.status, []byte(tt.body), "req-1")

			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, "req-1", err.RequestID)
			assert.True(t, errors.Is(err, tt.wantKind.Sentinel()))
		})
	}
}

func TestFromResponseUnparseable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"html", "<html><body>Bad Gateway</body></html>"},
		{"empty", ""},
		{"empty object", "{}"},
		{"array", `["code"]`},
		{"truncated json", `{"code":"x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromResponse(http.StatusBadGateway, []byte(tt.body), "")

			assert.Equal(t, core.KindDecode, err.Kind)
			assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
			assert.Contains(t, err.Message, "status 502")
			assert.True(t, errors.Is(err, core.ErrDecode))
		})
	}
}

func TestFromResponseBoundsExcerpt(t *testing.T) {
	body := strings.Repeat("x", 10*MaxExcerpt)

	err := FromResponse(http.StatusInternalServerError, []byte(body), "")

	require.Equal(t, core.KindDecode, err.Kind)
	assert.Less(t, len(err.Message), MaxExcerpt+100)
	assert.Contains(t, err.Message, "(truncated)")
}

func TestFromStreamError(t *testing.T) {
	err := FromStreamError(0, "completion_request_error", "model quota exceeded", "req-2")
	assert.Equal(t, core.KindServiceUnavailable, err.Kind)
	assert.Equal(t, "completion_request_error", err.Code)
	assert.Equal(t, "model quota exceeded", err.Message)

	err = FromStreamError(400, "invalid_param", "bad input", "")
	assert.Equal(t, core.KindBadRequest, err.Kind)
	assert.Equal(t, 400, err.HTTPStatus)

	err = FromStreamError(500, "", "", "")
	assert.Equal(t, core.KindServiceUnavailable, err.Kind)
	assert.Equal(t, "Internal Server Error", err.Message)
}

func TestFromTransport(t *testing.T) {
	err := FromTransport(errors.New("dial tcp: connection refused"), "req-3")
	assert.Equal(t, core.KindNetwork, err.Kind)
	assert.True(t, errors.Is(err, core.ErrNetwork))
	assert.Equal(t, "req-3", err.RequestID)

	err = FromTransport(fmt.Errorf("read body: %w", context.DeadlineExceeded), "")
	assert.Equal(t, core.KindTimeout, err.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	err = FromTransport(context.Canceled, "")
	assert.Equal(t, core.KindNetwork, err.Kind)
	assert.True(t, errors.Is(err, context.Canceled))

	orig := Invalid("user", "is required")
	assert.Same(t, orig, FromTransport(fmt.Errorf("wrapped: %w", orig), ""))
}

func TestDecode(t *testing.T) {
	cause := errors.New("invalid character 'x'")
	err := Decode(cause, []byte(`x{"event":"message"}`), "req-4")

	assert.Equal(t, core.KindDecode, err.Kind)
	assert.Contains(t, err.Message, `x{"event":"message"}`)
	assert.True(t, errors.Is(err, cause))
}

func TestInvalid(t *testing.T) {
	err := Invalid("query", "is required")

	assert.Equal(t, core.KindBadRequest, err.Kind)
	assert.Equal(t, CodeInvalidParam, err.Code)
	assert.Equal(t, "query is required", err.Message)
	assert.Zero(t, err.HTTPStatus)
}

func TestExcerptRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", MaxExcerpt-1) + "é" + "tail"

	got := Excerpt([]byte(body))

	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.NotContains(t, got, "�")
	assert.Len(t, strings.TrimSuffix(got, "...(truncated)"), MaxExcerpt-1)
}

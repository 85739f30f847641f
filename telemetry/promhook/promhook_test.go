package promhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petal-labs/dify-go/core"
	"github.com/petal-labs/dify-go/dify"
)

func TestHookCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := New(reg)
	require.NoError(t, err)

	now := time.Now()
	hook.OnRequestStart(core.RequestStartEvent{Path: "/v1/chat-messages", Start: now})
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.inflight.WithLabelValues("/v1/chat-messages")))

	hook.OnRequestEnd(core.RequestEndEvent{Path: "/v1/chat-messages", Status: 200, Start: now, End: now.Add(time.Second)})
	hook.OnRequestStart(core.RequestStartEvent{Path: "/v1/chat-messages", Start: now})
	hook.OnRequestEnd(core.RequestEndEvent{
		Path:   "/v1/chat-messages",
		Status: 429,
		Start:  now,
		End:    now,
		Err:    &core.ServiceError{Kind: core.KindRateLimited},
	})
	hook.OnRequestStart(core.RequestStartEvent{Path: "/v1/meta", Start: now})
	hook.OnRequestEnd(core.RequestEndEvent{
		Path:  "/v1/meta",
		Start: now,
		End:   now,
		Err:   &core.ServiceError{Kind: core.KindNetwork},
	})

	assert.Equal(t, 0.0, testutil.ToFloat64(hook.inflight.WithLabelValues("/v1/chat-messages")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("/v1/chat-messages", "200", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("/v1/chat-messages", "429", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("/v1/meta", "none", "network")))
	assert.Equal(t, 2, testutil.CollectAndCount(hook.duration))
}

func TestNewSharesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	now := time.Now()
	first.OnRequestEnd(core.RequestEndEvent{Path: "/v1/meta", Status: 200, Start: now, End: now})
	second.OnRequestEnd(core.RequestEndEvent{Path: "/v1/meta", Status: 200, Start: now, End: now})

	assert.Equal(t, 2.0, testutil.ToFloat64(first.requests.WithLabelValues("/v1/meta", "200", "ok")))
}

func TestHookWithClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tool_icons":{}}`))
	}))
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	hook, err := New(reg)
	require.NoError(t, err)

	client, err := dify.New("app-key", dify.WithBaseURL(server.URL), dify.WithTelemetry(hook))
	require.NoError(t, err)
	_, err = client.Meta(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(hook.requests.WithLabelValues("/v1/meta", "200", "ok")))
	count, err := testutil.GatherAndCount(reg, "dify_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	var latency *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "dify_request_duration_seconds" {
			latency = mf
		}
	}
	require.NotNil(t, latency)
	require.Len(t, latency.GetMetric(), 1)
	assert.Equal(t, uint64(1), latency.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestHookLabelsByRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	hook, err := New(reg)
	require.NoError(t, err)

	client, err := dify.New("app-key", dify.WithBaseURL(server.URL), dify.WithTelemetry(hook))
	require.NoError(t, err)
	for _, id := range []string{"3f1c2b9e-0c1d-4b3a-9d2e-1a2b3c4d5e6f", "7a8b9c0d-1e2f-4a5b-8c7d-6e5f4a3b2c1d"} {
		require.NoError(t, client.DeleteConversation(context.Background(), id, "u-1"))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(hook.requests.WithLabelValues("/v1/conversations/{id}", "204", "ok")))
	count, err := testutil.GatherAndCount(reg, "dify_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(reg, "dify_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

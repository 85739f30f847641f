// Package promhook exports Prometheus metrics for Dify API requests.
package promhook

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petal-labs/dify-go/core"
)

const namespace = "dify"

// Hook implements core.TelemetryHook with a request counter, a latency
// histogram and an in-flight gauge, all labelled by route template
// (e.g. "/v1/conversations/{id}") so per-conversation ids never become labels.
type Hook struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg, or with the
// default registerer when reg is nil. Collectors already registered by an
// earlier Hook are reused, so several clients can share one registry.
func New(reg prometheus.Registerer) (*Hook, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of Dify API requests",
		},
		[]string{"route", "status", "kind"}, // kind: ok or an error kind
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of Dify API requests in seconds, including streamed bodies",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"route", "streaming"},
	)
	inflight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of Dify API requests in progress",
		},
		[]string{"route"},
	)

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if inflight, err = register(reg, inflight); err != nil {
		return nil, err
	}
	return &Hook{requests: requests, duration: duration, inflight: inflight}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// OnRequestStart increments the in-flight gauge.
func (h *Hook) OnRequestStart(e core.RequestStartEvent) {
	h.inflight.WithLabelValues(e.Label()).Inc()
}

// OnRequestEnd records the outcome and duration.
func (h *Hook) OnRequestEnd(e core.RequestEndEvent) {
	route := e.Label()
	h.inflight.WithLabelValues(route).Dec()

	status := "none"
	if e.Status > 0 {
		status = strconv.Itoa(e.Status)
	}
	kind := "ok"
	if e.Err != nil {
		kind = e.Kind().String()
	}
	h.requests.WithLabelValues(route, status, kind).Inc()
	h.duration.WithLabelValues(route, strconv.FormatBool(e.Streaming)).Observe(e.Duration().Seconds())
}

var _ core.TelemetryHook = (*Hook)(nil)

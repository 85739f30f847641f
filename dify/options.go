package dify

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/petal-labs/dify-go/core"
	"github.com/petal-labs/dify-go/transport"
)

// DefaultBaseURL is the hosted Dify API.
const DefaultBaseURL = "https://api.dify.ai"

// DefaultTimeout bounds buffered calls and stream inactivity.
const DefaultTimeout = 30 * time.Second

type options struct {
	baseURL      string
	timeout      time.Duration
	tlsMode      transport.TLSMode
	httpClient   *http.Client
	headers      http.Header
	userAgent    string
	logger       *slog.Logger
	telemetry    []core.TelemetryHook
	limiter      *rate.Limiter
	requestHooks []transport.RequestHook
	maxEventSize int
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL sets the API base URL, e.g. for a self-hosted deployment.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithTimeout sets the request timeout. Buffered calls must complete within
// it; streaming calls must receive data at least this often. Zero disables
// the timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTLSMode selects the TLS configuration of the built-in HTTP client.
func WithTLSMode(mode transport.TLSMode) Option {
	return func(o *options) {
		o.tlsMode = mode
	}
}

// WithHTTPClient sets a custom HTTP client. The TLS mode is then ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithHeader adds an extra header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Set(key, value)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithLogger enables debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTelemetry adds a telemetry hook. It may be given more than once.
func WithTelemetry(hook core.TelemetryHook) Option {
	return func(o *options) {
		if hook != nil {
			o.telemetry = append(o.telemetry, hook)
		}
	}
}

// WithRateLimit paces outgoing calls to r per second with the given burst.
// Calls wait for a token; nothing is retried.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.limiter = rate.NewLimiter(r, burst)
	}
}

// WithRequestHook adds a hook that can rewrite each outgoing request, for
// example to swap the API key per tenant.
func WithRequestHook(hook transport.RequestHook) Option {
	return func(o *options) {
		if hook != nil {
			o.requestHooks = append(o.requestHooks, hook)
		}
	}
}

// WithMaxEventSize bounds a single stream event in bytes.
func WithMaxEventSize(n int) Option {
	return func(o *options) {
		o.maxEventSize = n
	}
}

func (o *options) transportConfig(apiKey string) transport.Config {
	cfg := transport.Config{
		BaseURL:      o.baseURL,
		APIKey:       core.NewSecret(apiKey),
		Timeout:      o.timeout,
		TLSMode:      o.tlsMode,
		HTTPClient:   o.httpClient,
		Headers:      o.headers,
		UserAgent:    o.userAgent,
		Logger:       o.logger,
		Limiter:      o.limiter,
		RequestHooks: o.requestHooks,
		MaxEventSize: o.maxEventSize,
	}
	switch len(o.telemetry) {
	case 0:
	case 1:
		cfg.Telemetry = o.telemetry[0]
	default:
		cfg.Telemetry = core.MultiHook(o.telemetry)
	}
	return cfg
}

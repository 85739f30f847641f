package transport

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/petal-labs/dify-go/core"
	"github.com/petal-labs/dify-go/internal/normalize"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "dify-go"

// DefaultMaxEventSize bounds a single buffered stream event.
const DefaultMaxEventSize = 1 << 20

// TLSMode selects how the default HTTP client is built.
type TLSMode int

const (
	// TLSModeDefault uses a clone of http.DefaultTransport.
	TLSModeDefault TLSMode = iota

	// TLSModeStrict requires TLS 1.2 or later with a curated cipher list and
	// configures HTTP/2 with connection health checks.
	TLSModeStrict
)

// String returns the mode name as used in configuration files.
func (m TLSMode) String() string {
	switch m {
	case TLSModeStrict:
		return "strict"
	default:
		return "default"
	}
}

// ParseTLSMode parses "default" or "strict". The empty string is default.
func ParseTLSMode(s string) (TLSMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return TLSModeDefault, nil
	case "strict":
		return TLSModeStrict, nil
	default:
		return TLSModeDefault, normalize.Invalid("tls_mode", "must be default or strict")
	}
}

// RequestHook can inspect or rewrite an outgoing request after the standard
// headers are set. Returning an error aborts the call.
type RequestHook func(*http.Request) error

// Config holds the settings shared by every call made through a Transport.
type Config struct {
	// BaseURL is the absolute http(s) URL of the API, without the /v1 suffix.
	BaseURL string

	// APIKey is sent as a bearer token (required).
	APIKey core.Secret

	// Timeout bounds a buffered call end to end. For streaming calls it bounds
	// the time to the response headers and then the gap between body reads.
	// Zero disables the timeout.
	Timeout time.Duration

	// TLSMode is ignored when HTTPClient is set.
	TLSMode TLSMode

	// HTTPClient overrides the client built from TLSMode.
	HTTPClient *http.Client

	// Headers are added to every request.
	Headers http.Header

	UserAgent string

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger

	// Telemetry receives request lifecycle events. Nil disables them.
	Telemetry core.TelemetryHook

	// Limiter paces outgoing calls on the client side. It is waited on before
	// each send and never retries.
	Limiter *rate.Limiter

	RequestHooks []RequestHook

	// MaxEventSize bounds a single stream event. Zero means DefaultMaxEventSize.
	MaxEventSize int
}

// validate checks the invariants and fills defaults on a copy.
func (c Config) validate() (Config, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	u, err := url.Parse(base)
	if base == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return c, normalize.Invalid("base_url", "must be an absolute http(s) URL")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return c, normalize.Invalid("base_url", "must not carry a query or fragment")
	}
	c.BaseURL = base

	if c.APIKey.IsEmpty() {
		return c, normalize.Invalid("api_key", "is required")
	}
	if c.Timeout < 0 {
		return c, normalize.Invalid("timeout", "must not be negative")
	}
	if c.MaxEventSize < 0 {
		return c, normalize.Invalid("max_event_size", "must not be negative")
	}
	if c.MaxEventSize == 0 {
		c.MaxEventSize = DefaultMaxEventSize
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Telemetry == nil {
		c.Telemetry = core.NoopTelemetryHook{}
	}

	c.Headers = c.Headers.Clone()
	c.RequestHooks = append([]RequestHook(nil), c.RequestHooks...)
	return c, nil
}

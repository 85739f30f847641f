package dify

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/petal-labs/dify-go/internal/normalize"
	"github.com/petal-labs/dify-go/transport"
)

// Version is the library version reported in the default User-Agent.
const Version = "0.4.0"

// Environment variables read by NewFromEnv.
const (
	EnvAPIKey  = "DIFY_API_KEY"
	EnvBaseURL = "DIFY_BASE_URL"
	EnvTimeout = "DIFY_TIMEOUT"
)

// ErrAPIKeyNotFound is returned when the API key environment variable is not set.
var ErrAPIKeyNotFound = errors.New("dify: DIFY_API_KEY environment variable not set")

// Client calls the Dify application API. Each method is an independent call;
// a Client is safe for concurrent use and holds no per-conversation state.
type Client struct {
	tr *transport.Transport
}

// New creates a client for the application identified by apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	o := options{
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		userAgent: "dify-go/" + Version,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tr, err := transport.New(o.transportConfig(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{tr: tr}, nil
}

// NewFromEnv creates a client from DIFY_API_KEY, DIFY_BASE_URL and
// DIFY_TIMEOUT. DIFY_TIMEOUT accepts a Go duration ("45s") or whole seconds.
// Explicit options override the environment:
//
//	client, err := dify.NewFromEnv(dify.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewFromEnv(opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if apiKey == "" {
		return nil, ErrAPIKeyNotFound
	}

	var envOpts []Option
	if base := strings.TrimSpace(os.Getenv(EnvBaseURL)); base != "" {
		envOpts = append(envOpts, WithBaseURL(base))
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTimeout)); raw != "" {
		d, err := parseTimeout(raw)
		if err != nil {
			return nil, err
		}
		envOpts = append(envOpts, WithTimeout(d))
	}

	return New(apiKey, append(envOpts, opts...)...)
}

func parseTimeout(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, normalize.Invalid(EnvTimeout, "must not be negative")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, normalize.Invalid(EnvTimeout, "is not a duration: "+raw)
	}
	return d, nil
}

// Transport exposes the underlying transport for calls this package does
// not wrap.
func (c *Client) Transport() *transport.Transport {
	return c.tr
}

package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// strictCipherSuites is used for TLS 1.2 connections in strict mode. TLS 1.3
// suites are not configurable and always enabled.
var strictCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

const (
	h2ReadIdleTimeout = 30 * time.Second
	h2PingTimeout     = 15 * time.Second
)

// newHTTPClient builds the client used when Config.HTTPClient is nil.
// The client has no overall timeout; deadlines come from the call context.
func newHTTPClient(mode TLSMode) (*http.Client, error) {
	if mode != TLSModeStrict {
		return &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}, nil
	}

	rt, err := newStrictTransport()
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: rt}, nil
}

func newStrictTransport() (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			CipherSuites: strictCipherSuites,
		},
	}

	// Long-lived event streams need dead connections detected by pings.
	h2, err := http2.ConfigureTransports(t)
	if err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	h2.ReadIdleTimeout = h2ReadIdleTimeout
	h2.PingTimeout = h2PingTimeout
	return t, nil
}

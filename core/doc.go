// Package core holds the leaf types shared by every layer of the Dify client:
// the [ServiceError] taxonomy, the redacting [Secret] wrapper for API keys and the
// [TelemetryHook] contract.
//
// # Errors
//
// Every failure surfaced by the transport, the stream decoder and the endpoint
// methods is a *[ServiceError]. Classify it with errors.Is against the kind
// sentinels, or read the fields directly:
//
//	_, err := client.ChatMessages(ctx, req)
//	switch {
//	case errors.Is(err, core.ErrRateLimited):
//	    // back off, the caller owns retry policy
//	case errors.Is(err, core.ErrAuth):
//	    // bad or revoked API key
//	}
//
//	var svcErr *core.ServiceError
//	if errors.As(err, &svcErr) {
//	    log.Printf("status=%d code=%s", svcErr.HTTPStatus, svcErr.Code)
//	}
//
// The underlying cause stays reachable, so errors.Is(err, context.Canceled)
// also works for cancelled calls.
//
// # Telemetry
//
// [TelemetryHook] receives one start and one end event per request. [LogHook]
// writes them to a *slog.Logger; tracing and metrics hooks live under the
// telemetry directory.
package core

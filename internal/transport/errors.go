// Package transport implements the HTTP(S) client and server the SOAP
// message plane rides on, grounded on the teacher's
// internal/rpc/http_server.go, http_client (referenced via client.go) and
// tls_config.go: a net/http server with a path-to-operation dispatch map,
// bearer-token auth, health/readiness/metrics endpoints, and a client
// with pooled connections and per-request deadlines. No automatic retry
// lives here — spec.md §7 requires a bare TransportError on failure, with
// retry left to the caller (the consumer façade, via
// cenkalti/backoff/v4).
package transport

import (
	"fmt"

	"github.com/sdcgo/sdc-core/internal/soap"
)

// TransportError reports a failure to deliver or receive a SOAP message
// over HTTP(S): connection refused, timeout, TLS handshake failure, or a
// 5xx status with an empty body.
type TransportError struct {
	URL     string
	Cause   error
	Timeout bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) FaultCode() soap.FaultCode    { return soap.CodeReceiver }
func (e *TransportError) FaultSubcode() soap.Subcode { return soap.SubTransportError }

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/sdcgo/sdc-core/internal/runtime"
)

// Client sends SOAP requests over HTTP(S) with a bounded number of
// concurrently in-flight requests and a per-request deadline, mirroring
// the connection-reuse discipline of the teacher's rpc.Client.
type Client struct {
	rt         *runtime.Runtime
	httpClient *http.Client
	sem        chan struct{}
	timeout    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTLSConfig installs a custom tls.Config, e.g. one whose
// VerifyPeerCertificate enforces a pluggable trust predicate over the
// peer's Subject Alternative Names instead of a plain CA check.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport.(*http.Transport).TLSClientConfig = cfg
	}
}

// NewClient builds a Client with maxConcurrent requests in flight and a
// per-request timeout.
func NewClient(rt *runtime.Runtime, maxConcurrent int, timeout time.Duration, opts ...ClientOption) *Client {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	c := &Client{
		rt: rt,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: maxConcurrent,
			},
		},
		sem:     make(chan struct{}, maxConcurrent),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends a SOAP envelope to url with the given SOAPAction header and
// returns the raw response body. A network error, a timeout, or a 5xx
// status with an empty body is reported as a *TransportError; any other
// response body, whatever its status, is returned to the caller to
// decode.
func (c *Client) Post(ctx context.Context, url, action string, body []byte) ([]byte, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, &TransportError{URL: url, Cause: ctx.Err()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{URL: url, Cause: err}
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action="`+action+`"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		timeout := ctx.Err() == context.DeadlineExceeded
		return nil, &TransportError{URL: url, Cause: err, Timeout: timeout}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Cause: err}
	}
	if resp.StatusCode >= 500 && len(respBody) == 0 {
		return nil, &TransportError{URL: url, Cause: errStatus(resp.StatusCode)}
	}
	return respBody, nil
}

type statusError int

func (e statusError) Error() string { return http.StatusText(int(e)) }

func errStatus(code int) error { return statusError(code) }

// Package consumer implements the SDC consumer façade: discover a
// provider, fetch its MDIB, mirror it locally, subscribe to reports, and
// keep the mirror consistent — rebuilding from scratch on a detected
// version gap rather than serving stale data. Grounded on the teacher's
// internal/rpc/client.go (TryConnect-before-dial pattern, timeouts,
// ClientVersion compatibility field).
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/sdcgo/sdc-core/internal/discovery"
	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/runtime"
	"github.com/sdcgo/sdc-core/internal/soap"
	"github.com/sdcgo/sdc-core/internal/transport"
	"github.com/sdcgo/sdc-core/internal/xmlcodec"
)

// ProtocolVersion is this build's SDC protocol/schema version. Nothing in
// this package sends it or compares it with a provider's version.
var ProtocolVersion = "1.0"

// Client is a consumer-side handle on one discovered provider: its
// XAddrs, a transport client, and a local mirror of the provider's MDIB.
type Client struct {
	rt       *runtime.Runtime
	xaddr    string
	http     *transport.Client
	mirror   *mdib.Store
	sg       singleflight.Group
	lastVersion uint64
}

// Dial builds a Client against a provider's primary transport address,
// probing reachability with a short timeout before committing to the
// full request flow, the same fail-fast shape as the teacher's
// TryConnectWithTimeout.
func Dial(ctx context.Context, rt *runtime.Runtime, xaddr string, probeTimeout time.Duration) (*Client, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	client := transport.NewClient(rt, 4, probeTimeout)
	if _, err := client.Post(probeCtx, xaddr, "urn:probe", nil); err != nil {
		if te, ok := err.(*transport.TransportError); ok && !te.Timeout {
			// A transport error that isn't a plain timeout (e.g. TLS
			// failure, connection refused) means this address will
			// never work; fail fast rather than retrying uselessly.
			return nil, fmt.Errorf("consumer: dial %s: %w", xaddr, err)
		}
	}
	return &Client{rt: rt, xaddr: xaddr, http: client, mirror: mdib.NewStore(rt)}, nil
}

// Mirror returns the local MDIB mirror, readable the same way the
// provider-side store is.
func (c *Client) Mirror() *mdib.Store { return c.mirror }

// Bootstrap fetches the full MDIB via GetMdib and rebuilds the mirror
// from scratch, discarding any prior state — the same recovery this
// client uses after a detected version gap.
func (c *Client) Bootstrap(ctx context.Context) error {
	_, err, _ := c.sg.Do("bootstrap", func() (interface{}, error) {
		return nil, c.bootstrap(ctx)
	})
	return err
}

func (c *Client) bootstrap(ctx context.Context) error {
	raw, err := c.getMdib(ctx)
	if err != nil {
		return err
	}
	version, _, entities, err := xmlcodec.DecodeDocument(raw)
	if err != nil {
		return err
	}
	tx := c.mirror.BeginTransaction(mdib.DescriptionTransaction)
	for _, root := range c.mirror.ReadSnapshot().Children("") {
		if err := tx.RemoveDescriptor(root); err != nil {
			tx.Abort()
			return fmt.Errorf("consumer: clear mirror: %w", err)
		}
	}
	for _, e := range entities {
		if err := tx.AddDescriptor(e.Descriptor, e.Descriptor.ParentHandle); err != nil {
			tx.Abort()
			return fmt.Errorf("consumer: rebuild mirror: %w", err)
		}
		for _, st := range e.States {
			st := st
			if e.Descriptor.Kind.IsMultiState() {
				if err := tx.UpdateContextState(e.Descriptor.Handle, st.MultiStateHandle, false, func(s *model.State) { *s = st }); err != nil {
					tx.Abort()
					return fmt.Errorf("consumer: seed context state: %w", err)
				}
			} else {
				if err := tx.UpdateState(e.Descriptor.Handle, func(s *model.State) { *s = st }); err != nil {
					tx.Abort()
					return fmt.Errorf("consumer: seed state: %w", err)
				}
			}
		}
	}
	if _, err := tx.Commit(); err != nil {
		return fmt.Errorf("consumer: commit mirror bootstrap: %w", err)
	}
	c.lastVersion = version
	return nil
}

// getMdib issues GetMdib with a bounded retry/backoff, since a transient
// network error here shouldn't require the caller to re-drive discovery.
func (c *Client) getMdib(ctx context.Context) ([]byte, error) {
	var result []byte
	op := func() error {
		env, err := soapEnvelope("GetService/GetMdib", c.xaddr, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		raw, err := c.http.Post(ctx, c.xaddr+"/GetService", "GetService/GetMdib", env)
		if err != nil {
			if te, ok := err.(*transport.TransportError); ok && !te.Timeout {
				return backoff.Permanent(err)
			}
			return err
		}
		reply, err := soap.Decode(raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		result = reply.Body
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// ResolveFromDiscovery builds a Client for ep, the usual path from a
// discovery.Listener's cache entry.
func ResolveFromDiscovery(ctx context.Context, rt *runtime.Runtime, ep discovery.DiscoveredEndpoint, probeTimeout time.Duration) (*Client, error) {
	return Dial(ctx, rt, ep.XAddrs, probeTimeout)
}

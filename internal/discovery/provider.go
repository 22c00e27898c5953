package discovery

import (
	"context"
	"encoding/xml"
	"net"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/sdcgo/sdc-core/internal/runtime"
)

// ProviderState is the closed per-provider announcement lifecycle
// (spec.md §4.D): a fresh provider starts Unannounced, sends Hello to
// become Live, and sends Bye to return to Unannounced before shutdown.
type ProviderState string

const (
	StateUnannounced ProviderState = "Unannounced"
	StateLive        ProviderState = "Live"
)

// Endpoint describes this provider's discoverable identity.
type Endpoint struct {
	Address string // EndpointReference/Address, typically urn:uuid:...
	Types   string
	Scopes  string
	XAddrs  string
}

// Announcer runs the provider side of WS-Discovery: it answers Probe/
// Resolve requests and multicasts Hello/Bye on demand, repeating Hello a
// few times with exponential backoff to survive packet loss, the same
// repetition strategy cenkalti/backoff/v4 gives the rest of this module's
// retry paths.
type Announcer struct {
	rt       *runtime.Runtime
	endpoint Endpoint
	conn     *net.UDPConn
	instance uint64
	msgNum   atomic.Uint64
	state    atomic.Value // ProviderState
	metadataVersion uint64
}

// NewAnnouncer opens the multicast socket and prepares an Announcer for
// endpoint, with instanceID identifying this provider process's
// AppSequence lineage (spec.md requires it be stable across a process's
// lifetime and change only on restart).
func NewAnnouncer(rt *runtime.Runtime, endpoint Endpoint, instanceID uint64) (*Announcer, error) {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return nil, &DiscoveryError{Op: "resolve multicast addr", Cause: err}
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, &DiscoveryError{Op: "listen multicast", Cause: err}
	}
	a := &Announcer{rt: rt, endpoint: endpoint, conn: conn, instance: instanceID, metadataVersion: 1}
	a.state.Store(StateUnannounced)
	return a, nil
}

func (a *Announcer) nextAppSequence() AppSequence {
	return AppSequence{InstanceID: a.instance, MessageNumber: a.msgNum.Add(1)}
}

// Hello announces this provider, repeating the multicast send with
// exponential backoff up to maxAttempts times so a lost UDP datagram
// doesn't leave consumers unaware of it.
func (a *Announcer) Hello(ctx context.Context, maxAttempts uint64) error {
	hello := Hello{
		MessageID:         uuid.NewString(),
		AppSequence:       a.nextAppSequence(),
		EndpointReference: a.endpoint.Address,
		Types:             a.endpoint.Types,
		Scopes:            a.endpoint.Scopes,
		XAddrs:            a.endpoint.XAddrs,
		MetadataVersion:   a.metadataVersion,
	}
	payload, err := xml.Marshal(hello)
	if err != nil {
		return &DiscoveryError{Op: "marshal hello", Cause: err}
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)
	var sent uint64
	errRepeat := &DiscoveryError{Op: "repeat hello"}
	err = backoff.Retry(func() error {
		if err := a.send(payload); err != nil {
			return err
		}
		sent++
		if sent < maxAttempts {
			return errRepeat
		}
		return nil
	}, bo)
	if err != nil && sent == 0 {
		return &DiscoveryError{Op: "send hello", Cause: err}
	}
	a.state.Store(StateLive)
	return nil
}

// Bye announces this provider's departure once (no repetition: a missed
// Bye is recovered by the consumer's own liveness timeout, not retried
// here).
func (a *Announcer) Bye(ctx context.Context) error {
	bye := Bye{MessageID: uuid.NewString(), AppSequence: a.nextAppSequence(), EndpointReference: a.endpoint.Address}
	payload, err := xml.Marshal(bye)
	if err != nil {
		return &DiscoveryError{Op: "marshal bye", Cause: err}
	}
	if err := a.send(payload); err != nil {
		return &DiscoveryError{Op: "send bye", Cause: err}
	}
	a.state.Store(StateUnannounced)
	return nil
}

func (a *Announcer) send(payload []byte) error {
	dst, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return err
	}
	_, err = a.conn.WriteToUDP(payload, dst)
	return err
}

// State reports the current announcement state.
func (a *Announcer) State() ProviderState { return a.state.Load().(ProviderState) }

// Serve listens for Probe/Resolve requests and answers them, until ctx is
// canceled.
func (a *Announcer) Serve(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = a.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, src, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return &DiscoveryError{Op: "read multicast", Cause: err}
		}
		a.handleInbound(buf[:n], src)
	}
}

func (a *Announcer) handleInbound(data []byte, src *net.UDPAddr) {
	var probe Probe
	if err := xml.Unmarshal(data, &probe); err == nil && probe.XMLName.Local == "Probe" {
		if !relevant(probe, a.endpoint) {
			return
		}
		match := ProbeMatches{
			MessageID:   uuid.NewString(),
			AppSequence: a.nextAppSequence(),
			ProbeMatch: []ProbeMatch{{
				EndpointReference: a.endpoint.Address,
				Types:             a.endpoint.Types,
				Scopes:            a.endpoint.Scopes,
				XAddrs:            a.endpoint.XAddrs,
				MetadataVersion:   a.metadataVersion,
			}},
		}
		payload, err := xml.Marshal(match)
		if err != nil {
			a.rt.Log.Warn("marshal probe match failed")
			return
		}
		if _, err := a.conn.WriteToUDP(payload, src); err != nil {
			a.rt.Log.Warn("send probe match failed")
		}
		return
	}
	var resolve Resolve
	if err := xml.Unmarshal(data, &resolve); err == nil && resolve.XMLName.Local == "Resolve" {
		if resolve.EndpointReference != a.endpoint.Address {
			return
		}
		match := ResolveMatches{
			MessageID:   uuid.NewString(),
			AppSequence: a.nextAppSequence(),
			ResolveMatch: ResolveMatch{
				EndpointReference: a.endpoint.Address,
				Types:             a.endpoint.Types,
				Scopes:            a.endpoint.Scopes,
				XAddrs:            a.endpoint.XAddrs,
				MetadataVersion:   a.metadataVersion,
			},
		}
		payload, err := xml.Marshal(match)
		if err != nil {
			a.rt.Log.Warn("marshal resolve match failed")
			return
		}
		if _, err := a.conn.WriteToUDP(payload, src); err != nil {
			a.rt.Log.Warn("send resolve match failed")
		}
	}
}

// relevant implements the Probe relevance predicate: a probe with empty
// Types/Scopes matches everything; otherwise every space-separated token
// the probe names must be present in the endpoint's own Types/Scopes.
func relevant(p Probe, e Endpoint) bool {
	if p.Types == "" && p.Scopes == "" {
		return true
	}
	if p.Types != "" && !containsAllTokens(e.Types, p.Types) {
		return false
	}
	if p.Scopes != "" && !containsAllTokens(e.Scopes, p.Scopes) {
		return false
	}
	return true
}

func containsAllTokens(haystack, needleList string) bool {
	needles := splitTokens(needleList)
	hay := splitTokens(haystack)
	set := make(map[string]bool, len(hay))
	for _, h := range hay {
		set[h] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}

func splitTokens(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// Close releases the multicast socket.
func (a *Announcer) Close() error { return a.conn.Close() }

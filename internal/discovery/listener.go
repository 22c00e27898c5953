package discovery

import (
	"context"
	"encoding/xml"
	"net"
	"sync"
	"time"

	"github.com/sdcgo/sdc-core/internal/runtime"
)

// DiscoveredEndpoint is one entry in the consumer-side discovery cache.
type DiscoveredEndpoint struct {
	Address         string
	Types           string
	Scopes          string
	XAddrs          string
	MetadataVersion uint64
	LastSeen        time.Time
}

// EventKind is the closed set of cache change notifications.
type EventKind string

const (
	EventAppeared EventKind = "Appeared"
	EventUpdated  EventKind = "Updated"
	EventVanished EventKind = "Vanished"
)

// Event is published on the Listener's event channel whenever the
// discovery cache changes.
type Event struct {
	Kind     EventKind
	Endpoint DiscoveredEndpoint
}

// dedupKey pairs AppSequence with MessageID, the (AppSequence, MessageID)
// tuple spec.md §4.D names for recognizing a retransmitted copy of the
// exact same announcement — distinct from the AppSequence-ordering check,
// which rejects stale messages rather than repeated ones.
type dedupKey struct {
	seq   AppSequence
	msgID string
}

// Listener runs the consumer side of WS-Discovery: it multicasts Probe
// requests, passively watches for Hello/Bye, and maintains a
// deduplicated cache keyed by endpoint address. Two independent checks
// guard against redundant processing: AppSequence ordering drops
// messages older than the last one seen from that instance/sequence
// pair, and the (AppSequence, MessageID) cache below drops a second
// delivery of the exact same message within dedupWindow (e.g. a
// retransmitted Hello after packet loss made the first delivery look
// lost to the sender).
type Listener struct {
	rt              *runtime.Runtime
	conn            *net.UDPConn
	dedupWindow     time.Duration
	livenessTimeout time.Duration

	mu       sync.Mutex
	cache    map[string]DiscoveredEndpoint
	lastSeq  map[string]AppSequence // keyed by EndpointReference
	seen     map[dedupKey]time.Time
	events   chan Event
}

// NewListener opens a multicast listening socket for passive Hello/Bye
// reception and Probe/Resolve reply collection.
func NewListener(rt *runtime.Runtime, dedupWindow, livenessTimeout time.Duration) (*Listener, error) {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return nil, &DiscoveryError{Op: "resolve multicast addr", Cause: err}
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, &DiscoveryError{Op: "listen multicast", Cause: err}
	}
	return &Listener{
		rt:              rt,
		conn:            conn,
		dedupWindow:     dedupWindow,
		livenessTimeout: livenessTimeout,
		cache:           make(map[string]DiscoveredEndpoint),
		lastSeq:         make(map[string]AppSequence),
		seen:            make(map[dedupKey]time.Time),
		events:          make(chan Event, 64),
	}, nil
}

// Events returns the channel Appeared/Updated/Vanished notifications are
// published on.
func (l *Listener) Events() <-chan Event { return l.events }

// Probe multicasts a Probe for the given types/scopes (empty means any)
// and collects ProbeMatches for wait before returning the endpoints seen,
// also merging them into the cache.
func (l *Listener) Probe(ctx context.Context, types, scopes string, wait time.Duration) ([]DiscoveredEndpoint, error) {
	probe := Probe{Types: types, Scopes: scopes}
	payload, err := xml.Marshal(probe)
	if err != nil {
		return nil, &DiscoveryError{Op: "marshal probe", Cause: err}
	}
	dst, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return nil, &DiscoveryError{Op: "resolve multicast addr", Cause: err}
	}
	if _, err := l.conn.WriteToUDP(payload, dst); err != nil {
		return nil, &DiscoveryError{Op: "send probe", Cause: err}
	}

	deadline := time.Now().Add(wait)
	var found []DiscoveredEndpoint
	buf := make([]byte, 65536)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(remaining))
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return found, &DiscoveryError{Op: "read multicast", Cause: err}
		}
		if ep, ok := l.handleInbound(buf[:n]); ok {
			found = append(found, ep)
		}
	}
	return found, nil
}

// Serve passively watches for Hello/Bye announcements until ctx is
// canceled, publishing cache changes to Events().
func (l *Listener) Serve(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return &DiscoveryError{Op: "read multicast", Cause: err}
		}
		l.handleInbound(buf[:n])
	}
}

func (l *Listener) handleInbound(data []byte) (DiscoveredEndpoint, bool) {
	var pm ProbeMatches
	if err := xml.Unmarshal(data, &pm); err == nil && pm.XMLName.Local == "ProbeMatches" {
		var last DiscoveredEndpoint
		for _, m := range pm.ProbeMatch {
			if ep, ok := l.merge(m.EndpointReference, m.Types, m.Scopes, m.XAddrs, m.MetadataVersion, pm.AppSequence, pm.MessageID); ok {
				last = ep
			}
		}
		return last, last.Address != ""
	}
	var hello Hello
	if err := xml.Unmarshal(data, &hello); err == nil && hello.XMLName.Local == "Hello" {
		ep, ok := l.merge(hello.EndpointReference, hello.Types, hello.Scopes, hello.XAddrs, hello.MetadataVersion, hello.AppSequence, hello.MessageID)
		return ep, ok
	}
	var bye Bye
	if err := xml.Unmarshal(data, &bye); err == nil && bye.XMLName.Local == "Bye" {
		l.remove(bye.EndpointReference, bye.AppSequence, bye.MessageID)
		return DiscoveredEndpoint{}, false
	}
	var rm ResolveMatches
	if err := xml.Unmarshal(data, &rm); err == nil && rm.XMLName.Local == "ResolveMatches" {
		ep, ok := l.merge(rm.ResolveMatch.EndpointReference, rm.ResolveMatch.Types, rm.ResolveMatch.Scopes,
			rm.ResolveMatch.XAddrs, rm.ResolveMatch.MetadataVersion, rm.AppSequence, rm.MessageID)
		return ep, ok
	}
	return DiscoveredEndpoint{}, false
}

// duplicateLocked reports whether (seq, msgID) was already seen within
// dedupWindow, recording it either way. Callers must hold l.mu. Expired
// entries are pruned opportunistically here rather than on a separate
// timer, since discovery traffic is low-rate.
func (l *Listener) duplicateLocked(seq AppSequence, msgID string) bool {
	if msgID == "" {
		return false // no MessageID to pair on, nothing to dedup against
	}
	now := time.Now()
	for k, at := range l.seen {
		if now.Sub(at) > l.dedupWindow {
			delete(l.seen, k)
		}
	}
	key := dedupKey{seq: seq, msgID: msgID}
	if at, ok := l.seen[key]; ok && now.Sub(at) <= l.dedupWindow {
		return true
	}
	l.seen[key] = now
	return false
}

func (l *Listener) merge(addr, types, scopes, xaddrs string, metaVersion uint64, seq AppSequence, msgID string) (DiscoveredEndpoint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.duplicateLocked(seq, msgID) {
		return DiscoveredEndpoint{}, false // retransmit of a message already processed
	}
	if prev, ok := l.lastSeq[addr]; ok && !prev.Less(seq) {
		return DiscoveredEndpoint{}, false // stale per AppSequence ordering
	}
	l.lastSeq[addr] = seq

	ep := DiscoveredEndpoint{
		Address: addr, Types: types, Scopes: scopes, XAddrs: xaddrs,
		MetadataVersion: metaVersion, LastSeen: time.Now(),
	}
	_, existed := l.cache[addr]
	l.cache[addr] = ep
	kind := EventUpdated
	if !existed {
		kind = EventAppeared
	}
	l.publish(Event{Kind: kind, Endpoint: ep})
	return ep, true
}

func (l *Listener) remove(addr string, seq AppSequence, msgID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.duplicateLocked(seq, msgID) {
		return
	}
	if prev, ok := l.lastSeq[addr]; ok && !prev.Less(seq) {
		return
	}
	l.lastSeq[addr] = seq
	ep, ok := l.cache[addr]
	if !ok {
		return
	}
	delete(l.cache, addr)
	l.publish(Event{Kind: EventVanished, Endpoint: ep})
}

func (l *Listener) publish(ev Event) {
	select {
	case l.events <- ev:
	default:
		l.rt.Log.Warn("discovery event channel full, dropping event")
	}
}

// Cached returns a snapshot of the current discovery cache.
func (l *Listener) Cached() []DiscoveredEndpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]DiscoveredEndpoint, 0, len(l.cache))
	for _, ep := range l.cache {
		out = append(out, ep)
	}
	return out
}

// Len reports the discovery cache size, for the provider/consumer
// metrics endpoint.
func (l *Listener) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

// Sweep evicts cached endpoints that have not been (re)announced within
// livenessTimeout, covering a missed Bye (e.g. a provider that crashed
// instead of shutting down cleanly).
func (l *Listener) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.livenessTimeout)
	for addr, ep := range l.cache {
		if ep.LastSeen.Before(cutoff) {
			delete(l.cache, addr)
			l.publish(Event{Kind: EventVanished, Endpoint: ep})
		}
	}
}

// Close releases the multicast socket.
func (l *Listener) Close() error { return l.conn.Close() }

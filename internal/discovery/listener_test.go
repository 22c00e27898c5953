package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/runtime"
)

func newTestListener(dedupWindow time.Duration) *Listener {
	return &Listener{
		rt:          runtime.New(zap.NewNop(), nil),
		dedupWindow: dedupWindow,
		cache:       make(map[string]DiscoveredEndpoint),
		lastSeq:     make(map[string]AppSequence),
		seen:        make(map[dedupKey]time.Time),
		events:      make(chan Event, 64),
	}
}

func TestListener_duplicateLocked_suppressesSameAppSequenceAndMessageID(t *testing.T) {
	l := newTestListener(time.Minute)
	seq := AppSequence{InstanceID: 1, MessageNumber: 1}

	assert.False(t, l.duplicateLocked(seq, "msg-1"), "first sighting is never a duplicate")
	assert.True(t, l.duplicateLocked(seq, "msg-1"), "identical (AppSequence, MessageID) retransmit must be suppressed")
}

func TestListener_duplicateLocked_differentMessageIDNotSuppressed(t *testing.T) {
	l := newTestListener(time.Minute)
	seq := AppSequence{InstanceID: 1, MessageNumber: 1}

	assert.False(t, l.duplicateLocked(seq, "msg-1"))
	assert.False(t, l.duplicateLocked(seq, "msg-2"), "a different MessageID is a distinct message, not a duplicate")
}

func TestListener_duplicateLocked_expiresAfterDedupWindow(t *testing.T) {
	l := newTestListener(time.Millisecond)
	seq := AppSequence{InstanceID: 1, MessageNumber: 1}
	l.seen[dedupKey{seq: seq, msgID: "msg-1"}] = time.Now().Add(-time.Hour)

	assert.False(t, l.duplicateLocked(seq, "msg-1"), "entry older than dedupWindow must not suppress")
}

func TestListener_duplicateLocked_emptyMessageIDNeverSuppresses(t *testing.T) {
	l := newTestListener(time.Minute)
	seq := AppSequence{InstanceID: 1, MessageNumber: 1}

	assert.False(t, l.duplicateLocked(seq, ""))
	assert.False(t, l.duplicateLocked(seq, ""), "no MessageID to pair on, nothing to dedup")
}

func TestListener_merge_retransmitSuppressed(t *testing.T) {
	l := newTestListener(time.Minute)
	seq := AppSequence{InstanceID: 1, MessageNumber: 1}

	ep, ok := l.merge("urn:uuid:dev1", "", "", "http://dev1", 1, seq, "msg-1")
	assert.True(t, ok)
	assert.Equal(t, "urn:uuid:dev1", ep.Address)
	assert.Len(t, l.events, 1)

	_, ok = l.merge("urn:uuid:dev1", "", "", "http://dev1", 1, seq, "msg-1")
	assert.False(t, ok, "retransmitted Hello must not produce a second event")
	assert.Len(t, l.events, 1)
}

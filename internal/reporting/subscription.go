package reporting

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdcgo/sdc-core/internal/mdib"
)

// SubscriptionHealth is the closed set of subscription lifecycle states
// (spec.md §4.F): a subscription starts Healthy, becomes Unhealthy after
// a delivery failure, and is Terminated once consecutive failures exceed
// the configured threshold or its queue overflows. TTL expiry does not
// change health; Manager.SweepExpired removes expired subscriptions.
type SubscriptionHealth string

const (
	Healthy    SubscriptionHealth = "Healthy"
	Unhealthy  SubscriptionHealth = "Unhealthy"
	Terminated SubscriptionHealth = "Terminated"
)

// QueuedReport is one report waiting for (or already attempted)
// delivery to a subscription, numbered with a per-subscription
// monotonically increasing sequence so a receiver can detect drops.
type QueuedReport struct {
	Sequence uint64
	Report   *mdib.Report
}

// Subscription is one WS-Eventing subscription: a NotifyTo endpoint, an
// action filter, and a bounded, strictly ordered delivery queue.
type Subscription struct {
	ID         string
	NotifyTo   string
	Filter     map[mdib.ReportAction]bool // empty/nil means "all actions"
	ExpiresAt  time.Time
	MaxQueue   int

	mu            sync.Mutex
	health        SubscriptionHealth
	failureCount  int
	nextSeq       uint64
	queue         []QueuedReport
	overflowCount uint64
}

// NewSubscription creates a subscription with a fresh id. actions being
// empty subscribes to every report action.
func NewSubscription(notifyTo string, actions []mdib.ReportAction, ttl time.Duration, maxQueue int) *Subscription {
	var filter map[mdib.ReportAction]bool
	if len(actions) > 0 {
		filter = make(map[mdib.ReportAction]bool, len(actions))
		for _, a := range actions {
			filter[a] = true
		}
	}
	return &Subscription{
		ID:        uuid.NewString(),
		NotifyTo:  notifyTo,
		Filter:    filter,
		ExpiresAt: time.Now().Add(ttl),
		MaxQueue:  maxQueue,
		health:    Healthy,
		nextSeq:   1,
	}
}

// Matches reports whether action passes this subscription's filter.
func (s *Subscription) Matches(action mdib.ReportAction) bool {
	if s.Filter == nil {
		return true
	}
	return s.Filter[action]
}

// Renew extends the subscription's expiry by ttl from now.
func (s *Subscription) Renew(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExpiresAt = time.Now().Add(ttl)
}

// Expired reports whether the subscription's TTL has elapsed.
func (s *Subscription) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.ExpiresAt)
}

// Health returns the current lifecycle state.
func (s *Subscription) Health() SubscriptionHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// enqueue appends a report to the delivery queue, numbering it. The queue
// only ever reflects undelivered backlog: a healthy subscription drains
// back to empty on every successful delivery (see deliverOne), so the
// overflow check below fires on genuine backpressure — reports piling up
// behind repeated delivery failures — never on cumulative lifetime report
// count (spec.md §4.F).
func (s *Subscription) enqueue(r *mdib.Report) QueuedReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	qr := QueuedReport{Sequence: s.nextSeq, Report: r}
	s.nextSeq++
	s.queue = append(s.queue, qr)
	s.checkOverflowLocked()
	return qr
}

// requeue puts a batch that failed delivery back at the front of the
// queue, preserving order, so it's retried on the next delivery attempt
// instead of being lost. A failing subscription's backlog grows here,
// which is what the overflow check is meant to catch.
func (s *Subscription) requeue(batch []QueuedReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(batch, s.queue...)
	s.checkOverflowLocked()
}

func (s *Subscription) checkOverflowLocked() {
	if s.MaxQueue > 0 && len(s.queue) > s.MaxQueue {
		s.overflowCount++
		s.health = Terminated
	}
}

// drain removes and returns every queued report in order, for the
// delivery goroutine to attempt.
func (s *Subscription) drain() []QueuedReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

func (s *Subscription) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount = 0
	if s.health != Terminated {
		s.health = Healthy
	}
}

// recordFailure increments the failure count and transitions the
// subscription to Unhealthy, then to Terminated once failureCount
// exceeds maxFailures. Reports still queued for a Terminated subscription
// are dropped by the caller, not retried.
func (s *Subscription) recordFailure(maxFailures int) SubscriptionHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
	if s.failureCount > maxFailures {
		s.health = Terminated
	} else {
		s.health = Unhealthy
	}
	return s.health
}

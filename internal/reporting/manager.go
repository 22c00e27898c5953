package reporting

import (
	"sync"
	"time"

	"github.com/sdcgo/sdc-core/internal/mdib"
)

// Manager owns the set of live subscriptions for one provider instance
// and implements the WS-Eventing create/renew/unsubscribe/getstatus
// operations.
type Manager struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewManager creates an empty subscription manager.
func NewManager() *Manager {
	return &Manager{subs: make(map[string]*Subscription)}
}

// Create installs a new subscription and returns it.
func (m *Manager) Create(notifyTo string, actions []mdib.ReportAction, ttl time.Duration, maxQueue int) *Subscription {
	sub := NewSubscription(notifyTo, actions, ttl, maxQueue)
	m.mu.Lock()
	m.subs[sub.ID] = sub
	m.mu.Unlock()
	return sub
}

// Renew extends subscriptionID's TTL.
func (m *Manager) Renew(subscriptionID string, ttl time.Duration) error {
	sub, err := m.get(subscriptionID)
	if err != nil {
		return err
	}
	sub.Renew(ttl)
	return nil
}

// Unsubscribe removes a subscription immediately.
func (m *Manager) Unsubscribe(subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[subscriptionID]; !ok {
		return &SubscriptionError{SubscriptionID: subscriptionID, Reason: "not found"}
	}
	delete(m.subs, subscriptionID)
	return nil
}

// GetStatus returns a subscription's current health and expiry, for the
// WS-Eventing GetStatus operation.
func (m *Manager) GetStatus(subscriptionID string) (SubscriptionHealth, time.Time, error) {
	sub, err := m.get(subscriptionID)
	if err != nil {
		return "", time.Time{}, err
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.health, sub.ExpiresAt, nil
}

func (m *Manager) get(subscriptionID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[subscriptionID]
	if !ok {
		return nil, &SubscriptionError{SubscriptionID: subscriptionID, Reason: "not found"}
	}
	return sub, nil
}

// All returns every live subscription, for fan-out and for periodic
// expiry sweeps.
func (m *Manager) All() []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out
}

// SweepExpired removes subscriptions whose TTL has elapsed or that have
// been Terminated by repeated delivery failure.
func (m *Manager) SweepExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.subs {
		if s.Expired(now) || s.Health() == Terminated {
			delete(m.subs, id)
		}
	}
}

// Len reports the number of live subscriptions, for the admin/metrics
// endpoint.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

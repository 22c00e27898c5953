package dispatch

import (
	"context"
	"time"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/reporting"
)

// EventingService implements WS-Eventing create/renew/unsubscribe/
// getstatus against a reporting.Manager.
type EventingService struct {
	manager    *reporting.Manager
	defaultTTL time.Duration
	maxQueue   int
}

// NewEventingService builds an EventingService.
func NewEventingService(manager *reporting.Manager, defaultTTL time.Duration, maxQueue int) *EventingService {
	return &EventingService{manager: manager, defaultTTL: defaultTTL, maxQueue: maxQueue}
}

// Subscribe creates a subscription delivering the named actions (or every
// action, if empty) to notifyTo.
func (e *EventingService) Subscribe(_ context.Context, notifyTo string, actions []mdib.ReportAction, ttl time.Duration) (*reporting.Subscription, error) {
	if ttl <= 0 {
		ttl = e.defaultTTL
	}
	return e.manager.Create(notifyTo, actions, ttl, e.maxQueue), nil
}

// Renew extends a subscription's TTL.
func (e *EventingService) Renew(_ context.Context, subscriptionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = e.defaultTTL
	}
	return e.manager.Renew(subscriptionID, ttl)
}

// Unsubscribe terminates a subscription immediately.
func (e *EventingService) Unsubscribe(_ context.Context, subscriptionID string) error {
	return e.manager.Unsubscribe(subscriptionID)
}

// GetStatus reports a subscription's health and expiry.
func (e *EventingService) GetStatus(_ context.Context, subscriptionID string) (reporting.SubscriptionHealth, time.Time, error) {
	return e.manager.GetStatus(subscriptionID)
}

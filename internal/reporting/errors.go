// Package reporting implements the WS-Eventing subscription lifecycle
// and the per-subscription report delivery pipeline, grounded on the
// teacher's internal/eventbus (ordered handler dispatch with a
// fire-and-forget durable sink) and internal/rpc/http_sse.go (since/
// filter query semantics). Delivery to each subscription is strictly
// ordered and gap-free (spec.md §4.F, tested property in §8); the
// optional NATS JetStream sink is a secondary, best-effort replay aid and
// never gates the primary delivery path.
package reporting

import (
	"fmt"

	"github.com/sdcgo/sdc-core/internal/soap"
)

// SubscriptionError reports a failure in the subscription lifecycle:
// unknown subscription id on renew/unsubscribe/getstatus, or a filter the
// pipeline can't evaluate.
type SubscriptionError struct {
	SubscriptionID string
	Reason         string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("reporting: subscription %s: %s", e.SubscriptionID, e.Reason)
}

func (e *SubscriptionError) FaultCode() soap.FaultCode    { return soap.CodeSender }
func (e *SubscriptionError) FaultSubcode() soap.Subcode { return soap.SubSubscriptionError }

package consumer

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/soap"
)

type subscribeRequestBody struct {
	XMLName        xml.Name `xml:"Subscribe"`
	NotifyTo       string   `xml:"Delivery>NotifyTo>Address"`
	Action         []string `xml:"Filter"`
	ExpiresSeconds int64    `xml:"Expires"`
}

type subscribeResponseBody struct {
	XMLName        xml.Name `xml:"SubscribeResponse"`
	SubscriptionID string   `xml:"SubscriptionManager>ReferenceParameters>Identifier"`
	Expires        int64    `xml:"Expires"`
}

// Subscribe asks the provider to push the named report actions (or all,
// if empty) to notifyTo, returning the subscription id and granted TTL.
func (c *Client) Subscribe(ctx context.Context, notifyTo string, actions []mdib.ReportAction, ttl time.Duration) (string, time.Duration, error) {
	req := subscribeRequestBody{NotifyTo: notifyTo, ExpiresSeconds: int64(ttl.Seconds())}
	for _, a := range actions {
		req.Action = append(req.Action, string(a))
	}
	body, err := xml.Marshal(req)
	if err != nil {
		return "", 0, fmt.Errorf("consumer: marshal subscribe: %w", err)
	}
	env, err := soapEnvelope("EventingService/Subscribe", c.xaddr, body)
	if err != nil {
		return "", 0, err
	}
	raw, err := c.http.Post(ctx, c.xaddr+"/EventingService", "EventingService/Subscribe", env)
	if err != nil {
		return "", 0, err
	}
	reply, err := soap.Decode(raw)
	if err != nil {
		return "", 0, fmt.Errorf("consumer: decode subscribe response: %w", err)
	}
	var resp subscribeResponseBody
	if err := xml.Unmarshal(reply.Body, &resp); err != nil {
		return "", 0, fmt.Errorf("consumer: decode subscribe response: %w", err)
	}
	return resp.SubscriptionID, time.Duration(resp.Expires) * time.Second, nil
}

// ApplyReport applies a pushed report document to the local mirror. If
// the report's MdibVersion does not immediately follow the mirror's last
// known version, the mirror is stale relative to what the provider
// believes was delivered (a dropped notification, a missed Hello after a
// provider restart, ...); rather than applying a gapped update, the
// client rebuilds its whole mirror from GetMdib (spec.md §9 version-gap
// recovery rule).
func (c *Client) ApplyReport(ctx context.Context, raw []byte) error {
	version, _, entities, err := mdibDecodeReport(raw)
	if err != nil {
		return err
	}
	if version != c.lastVersion+1 {
		c.rt.Log.Warn("mdib version gap detected, rebuilding mirror",
			zapUint64("expected", c.lastVersion+1), zapUint64("got", version))
		return c.Bootstrap(ctx)
	}
	tx := c.mirror.BeginTransaction(reportTransactionKind(entities))
	for _, e := range entities {
		for _, st := range e.States {
			st := st
			var err error
			if e.Descriptor.Kind.IsMultiState() {
				err = tx.UpdateContextState(e.Descriptor.Handle, st.MultiStateHandle, false, func(s *model.State) { *s = st })
			} else {
				err = tx.UpdateState(e.Descriptor.Handle, func(s *model.State) { *s = st })
			}
			if err != nil {
				tx.Abort()
				return fmt.Errorf("consumer: apply report: %w", err)
			}
		}
	}
	if _, err := tx.Commit(); err != nil {
		return fmt.Errorf("consumer: commit report: %w", err)
	}
	c.lastVersion = version
	return nil
}

// reportTransactionKind picks the transaction kind from the category of
// the first entity in a pushed report batch (Component for an empty
// batch). A batch mixing categories is not handled: applying it fails
// with TypeMismatch on the first entity of another category.
func reportTransactionKind(entities []model.Entity) mdib.TransactionKind {
	if len(entities) == 0 {
		return mdib.ComponentTransaction
	}
	switch {
	case entities[0].Descriptor.Kind.IsMetric():
		return mdib.MetricTransaction
	case entities[0].Descriptor.Kind.IsAlert():
		return mdib.AlertTransaction
	case entities[0].Descriptor.Kind.IsOperation():
		return mdib.OperationTransaction
	case entities[0].Descriptor.Kind.IsContext():
		return mdib.ContextTransaction
	default:
		return mdib.ComponentTransaction
	}
}

package dispatch

import (
	"context"
	"fmt"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/reporting"
	"github.com/sdcgo/sdc-core/internal/soap"
	"github.com/sdcgo/sdc-core/internal/transport"
	"github.com/sdcgo/sdc-core/internal/xmlcodec"
)

// HTTPDeliverer implements reporting.Deliverer by POSTing a SOAP envelope
// per queued report to the subscription's NotifyTo endpoint, in order.
// The first failed POST aborts the batch so reporting.Pipeline can record
// it as a delivery failure without double-counting partial progress.
type HTTPDeliverer struct {
	client *transport.Client
}

// NewHTTPDeliverer builds an HTTPDeliverer using client for outbound
// requests.
func NewHTTPDeliverer(client *transport.Client) *HTTPDeliverer {
	return &HTTPDeliverer{client: client}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, sub *reporting.Subscription, batch []reporting.QueuedReport) error {
	for _, qr := range batch {
		body, err := encodeReportBody(qr.Report)
		if err != nil {
			return fmt.Errorf("dispatch: encode report: %w", err)
		}
		env := soap.Envelope{Header: soap.NewRequestHeader(string(qr.Report.Action), sub.NotifyTo)}
		payload, err := soap.Encode(env, body)
		if err != nil {
			return fmt.Errorf("dispatch: encode envelope: %w", err)
		}
		if _, err := d.client.Post(ctx, sub.NotifyTo, string(qr.Report.Action), payload); err != nil {
			return err
		}
	}
	return nil
}

func encodeReportBody(r *mdib.Report) ([]byte, error) {
	doc := xmlcodec.EncodeDocument(r.MdibVersion, "", r.Updated)
	return xmlcodec.Marshal(doc)
}

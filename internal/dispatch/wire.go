package dispatch

import (
	"encoding/xml"
	"time"

	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/reporting"
	"github.com/sdcgo/sdc-core/internal/soap"
)

type handleFilterRequest struct {
	XMLName xml.Name `xml:"HandleRef"`
	Handle  []string `xml:"HandleRef"`
}

func decodeHandleFilter(body []byte) ([]model.Handle, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var req handleFilterRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		return nil, &soap.DecodeFault{Cause: err}
	}
	out := make([]model.Handle, len(req.Handle))
	for i, h := range req.Handle {
		out[i] = model.Handle(h)
	}
	return out, nil
}

type setValueRequest struct {
	XMLName          xml.Name `xml:"SetValue"`
	OperationHandle  string   `xml:"OperationHandleRef"`
	Value            float64  `xml:"RequestedNumericValue"`
}

type setStringRequest struct {
	XMLName         xml.Name `xml:"SetString"`
	OperationHandle string   `xml:"OperationHandleRef"`
	Value           string   `xml:"RequestedStringValue"`
}

type activateRequest struct {
	XMLName         xml.Name `xml:"Activate"`
	OperationHandle string   `xml:"OperationHandleRef"`
	Argument        []string `xml:"Argument>ArgValue"`
}

type setAlertRequest struct {
	XMLName         xml.Name `xml:"SetAlertState"`
	OperationHandle string   `xml:"OperationHandleRef"`
	ActivationState string   `xml:"ProposedAlertState>ActivationState"`
	Presence        bool     `xml:"ProposedAlertState>Presence"`
}

type setMetricRequest struct {
	XMLName         xml.Name `xml:"SetMetricState"`
	OperationHandle string   `xml:"OperationHandleRef"`
	ActivationState string   `xml:"ProposedMetricState>ActivationState"`
}

type setComponentRequest struct {
	XMLName         xml.Name `xml:"SetComponentState"`
	OperationHandle string   `xml:"OperationHandleRef"`
}

type setContextRequest struct {
	XMLName             xml.Name `xml:"SetContextState"`
	OperationHandle      string   `xml:"OperationHandleRef"`
	ContextStateHandle   string   `xml:"ProposedContextState>Handle"`
	ContextAssociation   string   `xml:"ProposedContextState>ContextAssociation"`
	Identification       []string `xml:"ProposedContextState>Identification"`
}

type setResponse struct {
	XMLName          xml.Name `xml:"SetResponse"`
	TransactionID    string   `xml:"TransactionId"`
}

func encodeTxID(txID string) []byte {
	out, err := xml.Marshal(setResponse{TransactionID: txID})
	if err != nil {
		return nil
	}
	return out
}

type subscribeRequest struct {
	XMLName        xml.Name `xml:"Subscribe"`
	NotifyTo       string   `xml:"Delivery>NotifyTo>Address"`
	Action         []string `xml:"Filter"`
	ExpiresSeconds int64    `xml:"Expires"`
}

type subscribeResponse struct {
	XMLName        xml.Name `xml:"SubscribeResponse"`
	SubscriptionID string   `xml:"SubscriptionManager>ReferenceParameters>Identifier"`
	Expires        int64    `xml:"Expires"`
}

func encodeSubscribeResponse(sub *reporting.Subscription) []byte {
	out, err := xml.Marshal(subscribeResponse{
		SubscriptionID: sub.ID,
		Expires:        int64(time.Until(sub.ExpiresAt).Seconds()),
	})
	if err != nil {
		return nil
	}
	return out
}

type renewRequest struct {
	XMLName        xml.Name `xml:"Renew"`
	SubscriptionID string   `xml:"SubscriptionId"`
	ExpiresSeconds int64    `xml:"Expires"`
}

type subscriptionIDRequest struct {
	XMLName        xml.Name `xml:"SubscriptionIDRequest"`
	SubscriptionID string   `xml:"SubscriptionId"`
}

type statusResponse struct {
	XMLName xml.Name `xml:"GetStatusResponse"`
	Health  string   `xml:"Health"`
	Expires int64    `xml:"Expires"`
}

func encodeStatusResponse(health reporting.SubscriptionHealth, expires time.Time) []byte {
	out, err := xml.Marshal(statusResponse{
		Health:  string(health),
		Expires: int64(time.Until(expires).Seconds()),
	})
	if err != nil {
		return nil
	}
	return out
}

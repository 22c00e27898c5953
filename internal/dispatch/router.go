package dispatch

import (
	"context"
	"encoding/xml"
	"time"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/soap"
)

// Router dispatches a decoded SOAP body to the right service method based
// on WS-Addressing Action, the same role the teacher's
// httpMethodToOperation map plays for its JSON-RPC methods.
type Router struct {
	get      *GetService
	ctxSvc   *ContextService
	set      *SetService
	eventing *EventingService
}

// NewRouter builds a Router wired to the four SDC services.
func NewRouter(get *GetService, ctxSvc *ContextService, set *SetService, eventing *EventingService) *Router {
	return &Router{get: get, ctxSvc: ctxSvc, set: set, eventing: eventing}
}

// Dispatch implements transport.Handler.
func (r *Router) Dispatch(ctx context.Context, action string, body []byte) ([]byte, error) {
	switch Action(action) {
	case ActionGetMdib:
		return r.get.GetMdib(ctx)
	case ActionGetMdDescription:
		req, err := decodeHandleFilter(body)
		if err != nil {
			return nil, err
		}
		return r.get.GetMdDescription(ctx, req)
	case ActionGetMdState:
		req, err := decodeHandleFilter(body)
		if err != nil {
			return nil, err
		}
		return r.get.GetMdState(ctx, req)
	case ActionGetContextStates:
		req, err := decodeHandleFilter(body)
		if err != nil {
			return nil, err
		}
		return r.ctxSvc.GetContextStates(ctx, req)

	case ActionSetValue:
		var req setValueRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		txID, err := r.set.SetValue(ctx, model.Handle(req.OperationHandle), req.Value)
		return encodeTxID(txID), err
	case ActionSetString:
		var req setStringRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		txID, err := r.set.SetString(ctx, model.Handle(req.OperationHandle), req.Value)
		return encodeTxID(txID), err
	case ActionActivate:
		var req activateRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		txID, err := r.set.Activate(ctx, model.Handle(req.OperationHandle), req.Argument)
		return encodeTxID(txID), err
	case ActionSetAlertState:
		var req setAlertRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		txID, err := r.set.SetAlertState(ctx, model.Handle(req.OperationHandle), req.ActivationState, req.Presence)
		return encodeTxID(txID), err
	case ActionSetMetricState:
		var req setMetricRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		txID, err := r.set.SetMetricState(ctx, model.Handle(req.OperationHandle), req.ActivationState)
		return encodeTxID(txID), err
	case ActionSetComponentState:
		var req setComponentRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		txID, err := r.set.SetComponentState(ctx, model.Handle(req.OperationHandle), func(tx *mdib.Tx, target model.Handle) error {
			return tx.UpdateState(target, func(st *model.State) {})
		})
		return encodeTxID(txID), err
	case ActionSetContextState:
		var req setContextRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		txID, err := r.set.SetContextState(ctx, model.Handle(req.OperationHandle), model.MultiStateHandle(req.ContextStateHandle), req.ContextAssociation, req.Identification)
		return encodeTxID(txID), err

	case ActionSubscribe:
		var req subscribeRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		var actions []mdib.ReportAction
		for _, a := range req.Action {
			actions = append(actions, mdib.ReportAction(a))
		}
		ttl := time.Duration(req.ExpiresSeconds) * time.Second
		sub, err := r.eventing.Subscribe(ctx, req.NotifyTo, actions, ttl)
		if err != nil {
			return nil, err
		}
		return encodeSubscribeResponse(sub), nil
	case ActionRenew:
		var req renewRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		err := r.eventing.Renew(ctx, req.SubscriptionID, time.Duration(req.ExpiresSeconds)*time.Second)
		return nil, err
	case ActionUnsubscribe:
		var req subscriptionIDRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		return nil, r.eventing.Unsubscribe(ctx, req.SubscriptionID)
	case ActionGetStatus:
		var req subscriptionIDRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			return nil, &soap.DecodeFault{Cause: err}
		}
		health, expires, err := r.eventing.GetStatus(ctx, req.SubscriptionID)
		if err != nil {
			return nil, err
		}
		return encodeStatusResponse(health, expires), nil
	}
	return nil, &soap.Fault{Code: soap.CodeSender, Subcode: soap.SubInvalidAction, Reason: "unsupported action: " + action}
}

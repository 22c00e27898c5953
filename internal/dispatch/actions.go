// Package dispatch maps WS-Addressing Actions onto MDIB operations and
// WS-Eventing subscription management, the SOAP-level counterpart of the
// teacher's internal/rpc method-name-to-operation table
// (httpMethodToOperation in http_server.go) and its OpXxx constant block
// in protocol.go.
package dispatch

// Action is a WS-Addressing Action URI suffix identifying one SDC
// operation. This implementation sends and matches the bare suffix as
// the wire Action, with no URI prefix.
type Action string

const (
	ActionGetMdib          Action = "GetService/GetMdib"
	ActionGetMdDescription Action = "GetService/GetMdDescription"
	ActionGetMdState       Action = "GetService/GetMdState"
	ActionGetContextStates Action = "ContextService/GetContextStates"

	ActionSetValue         Action = "SetService/SetValue"
	ActionSetString        Action = "SetService/SetString"
	ActionActivate         Action = "SetService/Activate"
	ActionSetContextState  Action = "ContextService/SetContextState"
	ActionSetAlertState    Action = "SetService/SetAlertState"
	ActionSetMetricState   Action = "SetService/SetMetricState"
	ActionSetComponentState Action = "SetService/SetComponentState"

	ActionSubscribe   Action = "EventingService/Subscribe"
	ActionRenew       Action = "EventingService/Renew"
	ActionUnsubscribe Action = "EventingService/Unsubscribe"
	ActionGetStatus   Action = "EventingService/GetStatus"
)

// servicePath returns the HTTP path the teacher's http_server.go pattern
// would register for this action's service, e.g. "/GetService".
func (a Action) servicePath() string {
	for i := 0; i < len(a); i++ {
		if a[i] == '/' {
			return "/" + string(a[:i])
		}
	}
	return "/" + string(a)
}

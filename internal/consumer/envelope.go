package consumer

import "github.com/sdcgo/sdc-core/internal/soap"

// soapEnvelope wraps bodyXML in a SOAP envelope addressed to `to` with
// the given WS-Addressing Action.
func soapEnvelope(action, to string, bodyXML []byte) ([]byte, error) {
	env := soap.Envelope{Header: soap.NewRequestHeader(action, to)}
	return soap.Encode(env, bodyXML)
}

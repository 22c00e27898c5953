package soap

import (
	"encoding/xml"
	"fmt"
)

// FaultCode is the SOAP 1.2 fault code set, extended with the SDC-
// specific subcodes spec.md §7 maps each internal error kind onto.
type FaultCode string

const (
	CodeSender          FaultCode = "Sender"
	CodeReceiver         FaultCode = "Receiver"
	CodeMustUnderstand   FaultCode = "MustUnderstand"
	CodeVersionMismatch  FaultCode = "VersionMismatch"
)

// Subcode further qualifies a Sender/Receiver fault with the SDC error
// taxonomy kind that caused it.
type Subcode string

const (
	SubDecodeError       Subcode = "DecodeError"
	SubTransportError    Subcode = "TransportError"
	SubTransactionError  Subcode = "TransactionError"
	SubVersionGap        Subcode = "VersionGap"
	SubSubscriptionError Subcode = "SubscriptionError"
	SubDiscoveryError    Subcode = "DiscoveryError"
	SubInvalidAction     Subcode = "InvalidAction"
)

// Fault is the wire representation of a SOAP 1.2 Fault body.
type Fault struct {
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Fault"`
	Code    FaultCode `xml:"Code>Value"`
	Subcode Subcode   `xml:"Code>Subcode>Value,omitempty"`
	Reason  string    `xml:"Reason>Text"`
	Detail  string    `xml:"Detail,omitempty"`
}

func (f *Fault) Error() string {
	if f.Subcode != "" {
		return fmt.Sprintf("soap fault %s/%s: %s", f.Code, f.Subcode, f.Reason)
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Reason)
}

// DecodeFault wraps a failure to even parse an incoming envelope —
// always a Sender/DecodeError fault since a malformed request is the
// peer's error, not ours.
type DecodeFault struct {
	Cause error
}

func (e *DecodeFault) Error() string { return "soap: malformed envelope: " + e.Cause.Error() }
func (e *DecodeFault) Unwrap() error { return e.Cause }

// ToFault converts e into its wire Fault per the closed mapping in
// spec.md §7. Unrecognized error kinds become a generic Receiver fault
// rather than leaking an internal error string as the Reason, so callers
// never need a fallback default clause at the dispatch boundary.
func ToFault(err error) *Fault {
	switch e := err.(type) {
	case *DecodeFault:
		return &Fault{Code: CodeSender, Subcode: SubDecodeError, Reason: e.Error()}
	case *Fault:
		return e
	}
	if mapped, ok := err.(interface {
		FaultCode() FaultCode
		FaultSubcode() Subcode
	}); ok {
		return &Fault{Code: mapped.FaultCode(), Subcode: mapped.FaultSubcode(), Reason: err.Error()}
	}
	return &Fault{Code: CodeReceiver, Reason: "internal error"}
}

// MustUnderstandFault builds the fault SOAP 1.2 requires when a header
// flagged mustUnderstand="true" was not recognized.
func MustUnderstandFault(headerName string) *Fault {
	return &Fault{Code: CodeMustUnderstand, Reason: "unrecognized mandatory header: " + headerName}
}

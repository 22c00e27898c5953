// Package soap implements the SOAP 1.2 message plane and WS-Addressing
// headers the SDC message model rides on: envelope encode/decode,
// MustUnderstand handling, and fault mapping to the error taxonomy in
// spec.md §7. Grounded on stdlib encoding/xml, matching the pack's
// WS-Discovery/ONVIF examples which hand-roll SOAP envelopes the same
// way rather than pulling in a SOAP library.
package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/google/uuid"
)

const (
	NSEnvelope  = "http://www.w3.org/2003/05/soap-envelope"
	NSAddressing = "http://www.w3.org/2005/08/addressing"
)

// Header carries the WS-Addressing fields every SDC message exchanges.
// Decode keeps only these fields: any other header block, including one
// flagged mustUnderstand, is dropped without a NotUnderstood fault, and
// mustUnderstandUnknown is never populated.
type Header struct {
	Action    string `xml:"http://www.w3.org/2005/08/addressing Action"`
	MessageID string `xml:"http://www.w3.org/2005/08/addressing MessageID"`
	RelatesTo string `xml:"http://www.w3.org/2005/08/addressing RelatesTo,omitempty"`
	To        string `xml:"http://www.w3.org/2005/08/addressing To,omitempty"`
	ReplyTo   *EndpointReference `xml:"http://www.w3.org/2005/08/addressing ReplyTo,omitempty"`

	mustUnderstandUnknown []xml.Name
}

// EndpointReference is a minimal WS-Addressing EPR, sufficient for
// ReplyTo/NotifyTo in subscription requests.
type EndpointReference struct {
	Address string `xml:"http://www.w3.org/2005/08/addressing Address"`
}

// Envelope is the SOAP 1.2 envelope: WS-Addressing headers plus an
// opaque body payload the caller decodes separately based on Action.
type Envelope struct {
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	Header  Header   `xml:"http://www.w3.org/2003/05/soap-envelope Header"`
	Body    []byte   `xml:"-"`
	RawBody envelopeBody `xml:"http://www.w3.org/2003/05/soap-envelope Body"`
}

// envelopeBody carries the Body element's content verbatim; encoding/xml
// only allows innerxml on an unnamed field, hence the wrapper.
type envelopeBody struct {
	Inner []byte `xml:",innerxml"`
}

// NewRequestHeader builds a Header for an outbound request with a fresh
// MessageID.
func NewRequestHeader(action, to string) Header {
	return Header{Action: action, MessageID: "urn:uuid:" + uuid.NewString(), To: to}
}

// NewReplyHeader builds a Header for a response correlated to req via
// RelatesTo, per WS-Addressing's request/response pattern.
func NewReplyHeader(action string, req Header) Header {
	return Header{Action: action, MessageID: "urn:uuid:" + uuid.NewString(), RelatesTo: req.MessageID}
}

// Encode renders env as an indented SOAP 1.2 document with bodyXML
// inlined verbatim as the Body content.
func Encode(env Envelope, bodyXML []byte) ([]byte, error) {
	env.Body = bodyXML
	env.RawBody.Inner = bodyXML
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("soap: encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a raw SOAP document into an Envelope, exposing the body
// as raw bytes for the dispatch layer to further unmarshal based on
// Header.Action.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &DecodeFault{Cause: err}
	}
	env.Body = env.RawBody.Inner
	return env, nil
}

package xmlcodec

import (
	"encoding/xml"
	"strings"
)

const (
	nsMessage    = "http://standards.ieee.org/downloads/11073/11073-10207-2017/message"
	nsParticipant = "http://standards.ieee.org/downloads/11073/11073-10207-2017/participant"
	nsExtension   = "http://standards.ieee.org/downloads/11073/11073-10207-2017/extension"
	nsXSI         = "http://www.w3.org/2001/XMLSchema-instance"
)

// QName is a namespace-qualified name used for xsi:type attributes
// (AbstractDescriptor/@xsi:type, AbstractState/@xsi:type) and other
// schema type discriminators. Marshaling/unmarshaling a bare string
// attribute loses the namespace prefix mapping that xsi:type relies on,
// so the codec carries it explicitly rather than as a plain string.
type QName struct {
	Space string
	Local string
}

// String renders the QName using the "pm" prefix convention this codec's
// documents declare for the participant-model namespace.
func (q QName) String() string {
	if q.Local == "" {
		return ""
	}
	return "pm:" + q.Local
}

// ParseQName strips a namespace prefix from a raw xsi:type attribute
// value. The codec only ever emits "pm:" prefixed values, but accepts any
// prefix on decode since the producing peer controls prefix choice.
func ParseQName(raw string) QName {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return QName{Space: nsParticipant, Local: raw[i+1:]}
	}
	return QName{Space: nsParticipant, Local: raw}
}

// xsiType is embedded in wire descriptor/state structs to round-trip the
// xsi:type discriminator attribute.
type xsiType struct {
	Type string `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
}

func xsiAttr(local string) xml.Attr {
	return xml.Attr{Name: xml.Name{Space: nsXSI, Local: "type"}, Value: "pm:" + local}
}

package discovery

import "encoding/xml"

const (
	multicastAddr = "239.255.255.250:3702"
	nsDiscovery   = "http://schemas.xmlsoap.org/ws/2005/04/discovery"
)

// AppSequence is the WS-Discovery ordering/dedup triple: a messages sent
// by the same (InstanceId, SequenceId) with a lower MessageNumber is
// stale and must be ignored by a relevance-checking receiver.
type AppSequence struct {
	InstanceID     uint64 `xml:"InstanceId,attr"`
	SequenceID     string `xml:"SequenceId,attr,omitempty"`
	MessageNumber  uint64 `xml:"MessageNumber,attr"`
}

// Less reports whether a is strictly older than b, ordering by
// InstanceID, then SequenceID, then MessageNumber.
func (a AppSequence) Less(b AppSequence) bool {
	if a.InstanceID != b.InstanceID {
		return a.InstanceID < b.InstanceID
	}
	if a.SequenceID != b.SequenceID {
		return a.SequenceID < b.SequenceID
	}
	return a.MessageNumber < b.MessageNumber
}

// Probe is sent multicast by a consumer searching for providers matching
// Types/Scopes (empty means "any").
type Probe struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Probe"`
	Types   string   `xml:"Types,omitempty"`
	Scopes  string   `xml:"Scopes,omitempty"`
}

// ProbeMatch is one provider's response to a Probe.
type ProbeMatch struct {
	EndpointReference string      `xml:"EndpointReference>Address"`
	Types             string      `xml:"Types,omitempty"`
	Scopes            string      `xml:"Scopes,omitempty"`
	XAddrs            string      `xml:"XAddrs"`
	MetadataVersion   uint64      `xml:"MetadataVersion"`
}

// ProbeMatches wraps one or more ProbeMatch with the sender's AppSequence.
type ProbeMatches struct {
	XMLName     xml.Name     `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery ProbeMatches"`
	MessageID   string       `xml:"MessageID,omitempty"`
	AppSequence AppSequence  `xml:"AppSequence"`
	ProbeMatch  []ProbeMatch `xml:"ProbeMatch"`
}

// Resolve asks a specific endpoint to (re)announce its transport
// addresses.
type Resolve struct {
	XMLName           xml.Name `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Resolve"`
	EndpointReference string   `xml:"EndpointReference>Address"`
}

// ResolveMatch answers a Resolve.
type ResolveMatch struct {
	EndpointReference string `xml:"EndpointReference>Address"`
	Types             string `xml:"Types,omitempty"`
	Scopes            string `xml:"Scopes,omitempty"`
	XAddrs            string `xml:"XAddrs"`
	MetadataVersion   uint64 `xml:"MetadataVersion"`
}

type ResolveMatches struct {
	XMLName      xml.Name     `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery ResolveMatches"`
	MessageID    string       `xml:"MessageID,omitempty"`
	AppSequence  AppSequence  `xml:"AppSequence"`
	ResolveMatch ResolveMatch `xml:"ResolveMatch"`
}

// Hello is multicast by a provider when it comes up. MessageID is a
// fresh WS-Addressing message identifier per send, distinct from
// AppSequence: AppSequence orders a provider's announcement stream,
// MessageID identifies one wire transmission of it for dedup against
// retransmits of the exact same announcement (spec.md §4.D).
type Hello struct {
	XMLName           xml.Name    `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Hello"`
	MessageID         string      `xml:"MessageID,omitempty"`
	AppSequence       AppSequence `xml:"AppSequence"`
	EndpointReference string      `xml:"EndpointReference>Address"`
	Types             string      `xml:"Types,omitempty"`
	Scopes            string      `xml:"Scopes,omitempty"`
	XAddrs            string      `xml:"XAddrs"`
	MetadataVersion   uint64      `xml:"MetadataVersion"`
}

// Bye is multicast by a provider before it goes offline.
type Bye struct {
	XMLName           xml.Name    `xml:"http://schemas.xmlsoap.org/ws/2005/04/discovery Bye"`
	MessageID         string      `xml:"MessageID,omitempty"`
	AppSequence       AppSequence `xml:"AppSequence"`
	EndpointReference string      `xml:"EndpointReference>Address"`
}

// Package discovery implements WS-Discovery multicast Probe/Resolve and
// Hello/Bye announcement, grounded on the ONVIF/WS-Discovery reference
// implementations in the retrieval pack (onvif-go/discovery,
// printmaster/agent-wsdiscovery, airscan-discover/wsdd.go): raw
// net.ListenMulticastUDP sockets and hand-built SOAP envelopes via
// encoding/xml, with no discovery-specific third-party dependency
// anywhere in the corpus.
package discovery

import (
	"fmt"

	"github.com/sdcgo/sdc-core/internal/soap"
)

// DiscoveryError reports a failure in the discovery engine: a malformed
// multicast message, a socket error, or a resolve that timed out.
type DiscoveryError struct {
	Op    string
	Cause error
}

func (e *DiscoveryError) Error() string { return fmt.Sprintf("discovery: %s: %v", e.Op, e.Cause) }
func (e *DiscoveryError) Unwrap() error { return e.Cause }

func (e *DiscoveryError) FaultCode() soap.FaultCode    { return soap.CodeReceiver }
func (e *DiscoveryError) FaultSubcode() soap.Subcode { return soap.SubDiscoveryError }

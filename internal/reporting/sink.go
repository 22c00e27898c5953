package reporting

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/runtime"
)

func errField(err error) zap.Field { return zap.Error(err) }

// sinkReport is the JSON shape persisted to JetStream: enough to replay
// or diagnose without round-tripping the full XML wire form.
type sinkReport struct {
	Action      mdib.ReportAction `json:"action"`
	MdibVersion uint64            `json:"mdib_version"`
	Handles     []string          `json:"handles"`
	Removed     []string          `json:"removed"`
}

func encodeReportForSink(r *mdib.Report) ([]byte, error) {
	s := sinkReport{Action: r.Action, MdibVersion: r.MdibVersion}
	for _, e := range r.Updated {
		s.Handles = append(s.Handles, string(e.Descriptor.Handle))
	}
	for _, h := range r.Removed {
		s.Removed = append(s.Removed, string(h))
	}
	return json.Marshal(s)
}

// JetStreamSink publishes every report to a per-instance JetStream
// stream, subject-per-action, mirroring the teacher's
// eventbus.Bus.publishToJetStream: best-effort, asynchronous, and never
// allowed to block or fail report delivery.
type JetStreamSink struct {
	rt       *runtime.Runtime
	js       nats.JetStreamContext
	instance string
}

// NewJetStreamSink builds a sink publishing under subject prefix
// "MDIB.<instanceID>.reports".
func NewJetStreamSink(rt *runtime.Runtime, js nats.JetStreamContext, instanceID string) *JetStreamSink {
	return &JetStreamSink{rt: rt, js: js, instance: instanceID}
}

// Publish fires the report at JetStream without waiting for
// acknowledgement; failures are logged, never propagated, matching the
// teacher's publishToJetStream fire-and-forget discipline.
func (s *JetStreamSink) Publish(action mdib.ReportAction, mdibVersion uint64, payload []byte) {
	subject := fmt.Sprintf("MDIB.%s.reports.%s", s.instance, action)
	if _, err := s.js.PublishAsync(subject, payload); err != nil {
		s.rt.Log.Debug("jetstream publish failed", errField(err), zap.String("subject", subject))
	}
}

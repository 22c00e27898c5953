package xmlcodec

import (
	"encoding/xml"

	"github.com/sdcgo/sdc-core/internal/model"
)

// wireState is the flattened on-the-wire shape of one AbstractState.
type wireState struct {
	XMLName          xml.Name `xml:"State"`
	DescriptorHandle string   `xml:"DescriptorHandle,attr"`
	MultiStateHandle string   `xml:"MultiStateHandle,attr,omitempty"`
	Version          uint64   `xml:"StateVersion,attr"`

	ActivationState string    `xml:"ActivationState,omitempty"`
	NumericValue    *float64  `xml:"NumericValue,omitempty"`
	StringValue     *string   `xml:"StringValue,omitempty"`
	Sample          []float64 `xml:"Sample,omitempty"`
	DeterminationTime int64   `xml:"DeterminationTime,omitempty"`

	OperatingMode     string `xml:"OperatingMode,omitempty"`
	CurrentInvocation string `xml:"CurrentInvocation,omitempty"`

	Presence       *bool  `xml:"Presence,omitempty"`
	SignalPresence string `xml:"SignalPresence,omitempty"`

	BindingMdibVersion *uint64  `xml:"BindingMdibVersion,attr,omitempty"`
	ContextAssociation string   `xml:"ContextAssociation,omitempty"`
	Identification     []string `xml:"Identification,omitempty"`
}

// EncodeState converts a model.State to its wire form. kind is the owning
// descriptor's kind, needed to disambiguate which payload fields apply.
func EncodeState(s model.State, kind model.DescriptorKind) wireState {
	w := wireState{
		DescriptorHandle: string(s.DescriptorHandle),
		MultiStateHandle: string(s.MultiStateHandle),
		Version:          s.StateVersion,
	}
	switch {
	case s.Metric != nil:
		w.ActivationState = s.Metric.ActivationState
		w.DeterminationTime = s.Metric.DeterminationTime
		if s.Metric.HasNumericValue {
			v := s.Metric.NumericValue
			w.NumericValue = &v
		}
		if s.Metric.HasStringValue {
			v := s.Metric.StringValue
			w.StringValue = &v
		}
		w.Sample = s.Metric.Samples
	case s.Operation != nil:
		w.OperatingMode = s.Operation.OperatingMode
		if s.Operation.CurrentInvocation != nil {
			w.CurrentInvocation = string(*s.Operation.CurrentInvocation)
		}
	case s.Alert != nil:
		w.ActivationState = s.Alert.ActivationState
		if kind == model.KindAlertCondition {
			p := s.Alert.Presence
			w.Presence = &p
		}
		w.SignalPresence = s.Alert.SignalPresence
	case s.Context != nil:
		v := s.Context.BindingMdibVersion
		w.BindingMdibVersion = &v
		w.ContextAssociation = s.Context.ContextAssociation
		w.Identification = s.Context.Identification
	}
	return w
}

// DecodeState converts a wire state back to model.State for an entity of
// the given descriptor kind.
func DecodeState(w wireState, kind model.DescriptorKind) (model.State, error) {
	s := model.State{
		DescriptorHandle: model.Handle(w.DescriptorHandle),
		MultiStateHandle: model.MultiStateHandle(w.MultiStateHandle),
		StateVersion:     w.Version,
	}
	switch {
	case kind.IsMetric():
		m := &model.MetricState{
			ActivationState:   w.ActivationState,
			DeterminationTime: w.DeterminationTime,
			Samples:           w.Sample,
		}
		if w.NumericValue != nil {
			m.NumericValue = *w.NumericValue
			m.HasNumericValue = true
		}
		if w.StringValue != nil {
			m.StringValue = *w.StringValue
			m.HasStringValue = true
		}
		s.Metric = m
	case kind.IsOperation():
		op := &model.OperationState{OperatingMode: w.OperatingMode}
		if w.CurrentInvocation != "" {
			inv := model.InvocationState(w.CurrentInvocation)
			op.CurrentInvocation = &inv
		}
		s.Operation = op
	case kind.IsAlert():
		a := &model.AlertState{ActivationState: w.ActivationState, SignalPresence: w.SignalPresence}
		if w.Presence != nil {
			a.Presence = *w.Presence
		}
		s.Alert = a
	case kind.IsContext():
		c := &model.ContextState{ContextAssociation: w.ContextAssociation, Identification: w.Identification}
		if w.BindingMdibVersion != nil {
			c.BindingMdibVersion = *w.BindingMdibVersion
		}
		s.Context = c
	case knownKind(kind):
		// Component kinds (MDS, VMD, Channel, ...) carry no typed state
		// payload beyond the common attributes.
	default:
		return s, newDecodeErr(SchemaViolation, "/State[@DescriptorHandle='"+w.DescriptorHandle+"']", nil)
	}
	return s, nil
}

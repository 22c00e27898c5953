package xmlcodec

import (
	"encoding/xml"

	"github.com/sdcgo/sdc-core/internal/model"
)

// wireDescriptor is the flattened on-the-wire shape of one
// AbstractDescriptor. Containment is expressed via ParentHandle rather
// than XML nesting: this codec trades strict BICEPS tree nesting for a
// flat, order-independent document that is trivial to round-trip and to
// diff, the same simplification the export/import path needs.
type wireDescriptor struct {
	XMLName xml.Name `xml:"Descriptor"`
	Handle  string   `xml:"Handle,attr"`
	Type    string   `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
	Parent  string   `xml:"ParentHandle,attr,omitempty"`
	Version uint64   `xml:"DescriptorVersion,attr"`
	Safety  string   `xml:"SafetyClassification,attr,omitempty"`

	Unit               string   `xml:"Unit,omitempty"`
	Resolution         float64  `xml:"Resolution,omitempty"`
	AllowedValue       []string `xml:"AllowedValue,omitempty"`
	MetricCategory     string   `xml:"MetricCategory,omitempty"`
	MetricAvailability string   `xml:"MetricAvailability,omitempty"`

	OperationTarget       string `xml:"OperationTarget,omitempty"`
	MaxTimeToFinishMillis uint64 `xml:"MaxTimeToFinishMillis,omitempty"`

	ConditionKind string `xml:"ConditionKind,omitempty"`
	Priority      string `xml:"Priority,omitempty"`

	Extension *extensionBlock `xml:"Extension,omitempty"`
}

// extensionBlock preserves content the codec could not map onto a known
// field, verbatim, for lossless round-trip (spec.md §5).
type extensionBlock struct {
	Raw []byte `xml:",innerxml"`
}

// EncodeDescriptor converts a model.Descriptor to its wire form.
func EncodeDescriptor(d model.Descriptor) wireDescriptor {
	w := wireDescriptor{
		Handle:  string(d.Handle),
		Type:    string(d.Kind),
		Parent:  string(d.ParentHandle),
		Version: d.DescriptorVersion,
		Safety:  d.SafetyClassification,
	}
	if d.Extension != nil {
		w.Extension = &extensionBlock{Raw: d.Extension}
	}
	switch {
	case d.Metric != nil:
		w.Unit = d.Metric.Unit
		w.Resolution = d.Metric.Resolution
		w.AllowedValue = d.Metric.AllowedValues
		w.MetricCategory = d.Metric.MetricCategory
		w.MetricAvailability = d.Metric.MetricAvailability
	case d.Operation != nil:
		w.OperationTarget = string(d.Operation.OperationTarget)
		w.MaxTimeToFinishMillis = d.Operation.MaxTimeToFinishMillis
	case d.Alert != nil:
		w.ConditionKind = d.Alert.ConditionKind
		w.Priority = d.Alert.Priority
	}
	return w
}

// DecodeDescriptor converts a wire descriptor back to model.Descriptor.
// It returns a SchemaViolation DecodeError if Type names a kind this
// codec does not recognize.
func DecodeDescriptor(w wireDescriptor) (model.Descriptor, error) {
	kind := model.DescriptorKind(ParseQName(w.Type).Local)
	if kind == "" {
		kind = model.DescriptorKind(w.Type)
	}
	if !knownKind(kind) {
		return model.Descriptor{}, newDecodeErr(SchemaViolation, "/Descriptor[@Handle='"+w.Handle+"']/@type", nil)
	}
	d := model.Descriptor{
		Handle:               model.Handle(w.Handle),
		Kind:                 kind,
		ParentHandle:         model.Handle(w.Parent),
		DescriptorVersion:    w.Version,
		SafetyClassification: w.Safety,
	}
	if w.Extension != nil {
		d.Extension = w.Extension.Raw
	}
	switch {
	case kind.IsMetric():
		d.Metric = &model.MetricDescriptor{
			Unit:               w.Unit,
			Resolution:         w.Resolution,
			AllowedValues:      w.AllowedValue,
			MetricCategory:     w.MetricCategory,
			MetricAvailability: w.MetricAvailability,
		}
	case kind.IsOperation():
		d.Operation = &model.OperationDescriptor{
			OperationTarget:       model.Handle(w.OperationTarget),
			MaxTimeToFinishMillis: w.MaxTimeToFinishMillis,
		}
	case kind.IsAlert():
		d.Alert = &model.AlertDescriptor{
			ConditionKind: w.ConditionKind,
			Priority:      w.Priority,
		}
	}
	return d, nil
}

var allKinds = map[model.DescriptorKind]bool{
	model.KindMDS: true, model.KindVMD: true, model.KindChannel: true,
	model.KindNumericMetric: true, model.KindStringMetric: true, model.KindEnumStringMetric: true,
	model.KindRealTimeSample: true, model.KindDistribution: true,
	model.KindSetOperation: true, model.KindActivateOperation: true, model.KindSetContextOperation: true,
	model.KindSetStringOperation: true, model.KindSetAlertOperation: true, model.KindSetComponentOperation: true,
	model.KindSetMetricOperation: true,
	model.KindAlertSystem: true, model.KindAlertCondition: true, model.KindAlertSignal: true,
	model.KindSco: true, model.KindBattery: true, model.KindClock: true,
	model.KindSystemContext: true, model.KindPatientContext: true, model.KindLocationContext: true,
	model.KindEnsembleContext: true, model.KindWorkflowContext: true, model.KindMeansContext: true,
	model.KindOperatorContext: true,
}

func knownKind(k model.DescriptorKind) bool { return allKinds[k] }

package model

// Descriptor is the immutable (per version) definition half of an MDIB
// entity: its identity, place in the containment tree, and type-specific
// configuration. A Descriptor never carries live/measured data — that
// lives in the paired State.
type Descriptor struct {
	Handle       Handle
	Kind         DescriptorKind
	ParentHandle Handle // zero value for the single MDS root
	// DescriptorVersion increments whenever this descriptor (not its
	// state) changes content; mdib.Store owns the increment rule.
	DescriptorVersion uint64
	// SafetyClassification mirrors BICEPS pm:AbstractDescriptor/@SafetyClassification.
	SafetyClassification string
	// Extension holds XML content the codec could not map onto a known
	// field, preserved for lossless round-trip (spec.md §5 round-trip
	// property).
	Extension []byte

	Metric    *MetricDescriptor
	Operation *OperationDescriptor
	Alert     *AlertDescriptor
}

// MetricDescriptor carries the type-specific configuration for the metric
// descriptor kinds (Numeric, String, EnumString, RealTimeSample,
// Distribution).
type MetricDescriptor struct {
	Unit            string
	Resolution      float64  // Numeric/RealTimeSample only
	AllowedValues   []string // EnumString only
	MetricCategory  string   // Msrmt, Clc, Set, Preset, Rcmm
	MetricAvailability string // Cont, Intr
}

// OperationDescriptor carries the type-specific configuration for the
// operation descriptor kinds.
type OperationDescriptor struct {
	// OperationTarget is the handle of the descriptor this operation acts
	// upon (e.g. the metric a SetValueOperation writes to).
	OperationTarget Handle
	// MaxTimeToFinish bounds how long an invoked operation may remain in
	// Wait/Start before the provider must transition it to a terminal
	// state.
	MaxTimeToFinishMillis uint64
}

// AlertDescriptor carries the type-specific configuration for the alert
// descriptor kinds.
type AlertDescriptor struct {
	// ConditionKind distinguishes physiological/technical/other for
	// AlertCondition descriptors; empty for AlertSystem/AlertSignal.
	ConditionKind string
	// Priority mirrors pm:AlertSignalDescriptor/@SignalDelegationSupported
	// and related priority fields for AlertSignal descriptors.
	Priority string
}

package model

// State is the mutable, versioned half of an MDIB entity. Single-state
// descriptor kinds own exactly one State (MultiStateHandle is empty);
// context descriptor kinds own zero or more, keyed by MultiStateHandle.
type State struct {
	DescriptorHandle Handle
	MultiStateHandle MultiStateHandle // empty for single-state entities
	// StateVersion increments on every commit that touches this entity's
	// state, independent of DescriptorVersion (spec.md §4.E versioning
	// rule).
	StateVersion uint64

	Metric    *MetricState
	Operation *OperationState
	Alert     *AlertState
	Context   *ContextState
}

// MetricState carries the live value and activation state for a metric
// entity.
type MetricState struct {
	ActivationState string // On, NotRdy, StndBy, Off, Shtdn, Fail
	// NumericValue is populated for NumericMetric states.
	NumericValue float64
	HasNumericValue bool
	// StringValue is populated for String/EnumString metric states.
	StringValue string
	HasStringValue bool
	// Samples is populated for RealTimeSample/Distribution metric states.
	Samples []float64
	DeterminationTime int64 // unix millis
}

// InvocationState is the closed set of transient operation-invocation
// states from spec.md §4.G / §7's OperationInvokedReport.
type InvocationState string

const (
	InvocationWait                   InvocationState = "Wait"
	InvocationStart                  InvocationState = "Start"
	InvocationFinished                InvocationState = "Fin"
	InvocationFinishedWithModification InvocationState = "FinMod"
	InvocationCancelled                InvocationState = "Cnclld"
	InvocationFailed                   InvocationState = "Fail"
)

// OperationState carries the current invocability and last-invocation
// bookkeeping for an operation entity.
type OperationState struct {
	OperatingMode string // En, Dis, NA
	// CurrentInvocation is nil when no invocation is in flight or the last
	// one reached a terminal state.
	CurrentInvocation *InvocationState
}

// AlertState carries the activation/presence state for an alert entity.
type AlertState struct {
	ActivationState string // On, Off, Psd (paused)
	// Presence is set for AlertCondition states only: whether the
	// condition currently holds.
	Presence bool
	// SignalPresence mirrors pm:AlertSignalState/@Presence for AlertSignal
	// states (On, Off, Latch, Ack).
	SignalPresence string
}

// ContextState carries the association lifecycle for a context instance
// (patient, location, ...). Exactly one context state kind is populated
// per descriptor kind via the owning Descriptor.Kind.
type ContextState struct {
	// BindingMdibVersion records the MDIB version at which this instance
	// was associated, per BICEPS context-state bookkeeping.
	BindingMdibVersion uint64
	// ContextAssociation is Assoc, Dis, Pre (pre-association), No.
	ContextAssociation string
	// Identification holds opaque identifiers (e.g. patient MRN) the
	// codec preserves without interpreting.
	Identification []string
}

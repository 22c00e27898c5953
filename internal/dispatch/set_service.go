package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/reporting"
	"github.com/sdcgo/sdc-core/internal/runtime"
)

// SetService implements the asynchronous Set*/Activate operations
// (spec.md §4.G): each call validates the target operation, kicks off
// the mutation in the background, and returns a transaction id
// immediately. Progress is reported exclusively via OperationInvokedReport
// through the reporting pipeline, never via the Set* response body
// itself — mirroring BICEPS's fire-and-track invocation model.
type SetService struct {
	rt       *runtime.Runtime
	store    *mdib.Store
	pipeline *reporting.Pipeline
}

// NewSetService builds a SetService wired to store and pipeline.
func NewSetService(rt *runtime.Runtime, store *mdib.Store, pipeline *reporting.Pipeline) *SetService {
	return &SetService{rt: rt, store: store, pipeline: pipeline}
}

// Mutator applies the requested change to the operation's target entity
// within an already-open transaction and returns only an error; every
// successful mutation reports Finished (FinishedWithModification is never
// reported).
type Mutator func(tx *mdib.Tx, target model.Handle) error

// Invoke validates operationHandle is a known, enabled operation and
// launches mutate against its OperationTarget in a background
// transaction of kind, returning a fresh transaction id. The
// OperationInvokedReport sequence (Wait -> Start -> terminal) does not
// carry this id.
func (s *SetService) Invoke(ctx context.Context, operationHandle model.Handle, kind mdib.TransactionKind, mutate Mutator) (string, error) {
	snap := s.store.ReadSnapshot()
	entity, ok := snap.Lookup(operationHandle)
	if !ok {
		return "", &mdib.TransactionError{Kind: mdib.UnknownHandle, Handle: operationHandle, Message: "unknown operation"}
	}
	if !entity.Descriptor.Kind.IsOperation() {
		return "", &mdib.TransactionError{Kind: mdib.TypeMismatch, Handle: operationHandle, Message: "not an operation"}
	}
	if len(entity.States) == 0 || entity.States[0].Operation == nil || entity.States[0].Operation.OperatingMode != "En" {
		return "", &mdib.TransactionError{Kind: mdib.InvariantViolation, Handle: operationHandle, Message: "operation not enabled"}
	}
	target := entity.Descriptor.Operation.OperationTarget
	txID := uuid.NewString()

	s.report(ctx, operationHandle, txID, model.InvocationWait)
	go s.run(operationHandle, target, txID, kind, mutate)
	return txID, nil
}

func (s *SetService) run(opHandle, target model.Handle, txID string, kind mdib.TransactionKind, mutate Mutator) {
	ctx := context.Background()
	s.report(ctx, opHandle, txID, model.InvocationStart)

	tx := s.store.BeginTransaction(kind)
	if err := mutate(tx, target); err != nil {
		tx.Abort()
		s.rt.Log.Warn("operation invocation failed", errField(err))
		s.report(ctx, opHandle, txID, model.InvocationFailed)
		return
	}
	report, err := tx.Commit()
	if err != nil {
		s.rt.Log.Warn("operation invocation commit failed", errField(err))
		s.report(ctx, opHandle, txID, model.InvocationFailed)
		return
	}
	s.pipeline.Dispatch(ctx, report)
	s.report(ctx, opHandle, txID, model.InvocationFinished)
}

func (s *SetService) report(ctx context.Context, opHandle model.Handle, txID string, state model.InvocationState) {
	r := &mdib.Report{
		Action:      mdib.OperationInvokedReport,
		MdibVersion: s.store.ReadSnapshot().MdibVersion(),
		Updated: []model.Entity{{
			Descriptor: model.Descriptor{Handle: opHandle, Kind: model.KindSetOperation},
			States: []model.State{{
				DescriptorHandle: opHandle,
				Operation:        &model.OperationState{OperatingMode: "En", CurrentInvocation: &state},
			}},
		}},
	}
	_ = txID // not included in the report
	s.pipeline.Dispatch(ctx, r)
}

// SetValue implements SetService/SetValue: write a numeric value to a
// NumericMetric's state.
func (s *SetService) SetValue(ctx context.Context, operationHandle model.Handle, value float64) (string, error) {
	return s.Invoke(ctx, operationHandle, mdib.MetricTransaction, func(tx *mdib.Tx, target model.Handle) error {
		return tx.UpdateState(target, func(st *model.State) {
			if st.Metric == nil {
				st.Metric = &model.MetricState{}
			}
			st.Metric.NumericValue = value
			st.Metric.HasNumericValue = true
		})
	})
}

// SetString implements SetService/SetString: write a string value to a
// String/EnumString metric's state.
func (s *SetService) SetString(ctx context.Context, operationHandle model.Handle, value string) (string, error) {
	return s.Invoke(ctx, operationHandle, mdib.MetricTransaction, func(tx *mdib.Tx, target model.Handle) error {
		return tx.UpdateState(target, func(st *model.State) {
			if st.Metric == nil {
				st.Metric = &model.MetricState{}
			}
			st.Metric.StringValue = value
			st.Metric.HasStringValue = true
		})
	})
}

// Activate implements SetService/Activate: invokes a side-effecting
// operation with no persistent target value. The mutation changes no
// field of the target's state (only its StateVersion is bumped) and args
// are not interpreted.
func (s *SetService) Activate(ctx context.Context, operationHandle model.Handle, args []string) (string, error) {
	return s.Invoke(ctx, operationHandle, mdib.ComponentTransaction, func(tx *mdib.Tx, target model.Handle) error {
		return tx.UpdateState(target, func(st *model.State) {
			if len(args) == 0 {
				return
			}
		})
	})
}

// SetAlertState implements SetService/SetAlertState.
func (s *SetService) SetAlertState(ctx context.Context, operationHandle model.Handle, activation string, presence bool) (string, error) {
	return s.Invoke(ctx, operationHandle, mdib.AlertTransaction, func(tx *mdib.Tx, target model.Handle) error {
		return tx.UpdateState(target, func(st *model.State) {
			if st.Alert == nil {
				st.Alert = &model.AlertState{}
			}
			st.Alert.ActivationState = activation
			st.Alert.Presence = presence
		})
	})
}

// SetMetricState implements SetService/SetMetricState: bulk-replace a
// metric's activation state (used for e.g. taking a sensor offline,
// distinct from writing its measured value via SetValue/SetString).
func (s *SetService) SetMetricState(ctx context.Context, operationHandle model.Handle, activation string) (string, error) {
	return s.Invoke(ctx, operationHandle, mdib.MetricTransaction, func(tx *mdib.Tx, target model.Handle) error {
		return tx.UpdateState(target, func(st *model.State) {
			if st.Metric == nil {
				st.Metric = &model.MetricState{}
			}
			st.Metric.ActivationState = activation
		})
	})
}

// SetComponentState implements SetService/SetComponentState.
func (s *SetService) SetComponentState(ctx context.Context, operationHandle model.Handle, mutate Mutator) (string, error) {
	return s.Invoke(ctx, operationHandle, mdib.ComponentTransaction, mutate)
}

// SetContextState implements ContextService/SetContextState: associate or
// update one context instance.
func (s *SetService) SetContextState(ctx context.Context, operationHandle model.Handle, msh model.MultiStateHandle, association string, identification []string) (string, error) {
	return s.Invoke(ctx, operationHandle, mdib.ContextTransaction, func(tx *mdib.Tx, target model.Handle) error {
		return tx.UpdateContextState(target, msh, true, func(st *model.State) {
			if st.Context == nil {
				st.Context = &model.ContextState{}
			}
			st.Context.ContextAssociation = association
			st.Context.Identification = identification
			st.Context.BindingMdibVersion = s.store.ReadSnapshot().MdibVersion()
		})
	})
}

func errField(err error) zap.Field { return zap.Error(err) }

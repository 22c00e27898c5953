package mdib_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/runtime"
)

func newStore(t *testing.T) *mdib.Store {
	t.Helper()
	return mdib.NewStore(runtime.New(zap.NewNop(), nil))
}

func addMDS(t *testing.T, store *mdib.Store) {
	t.Helper()
	tx := store.BeginTransaction(mdib.DescriptionTransaction)
	require.NoError(t, tx.AddDescriptor(model.Descriptor{Handle: "mds1", Kind: model.KindMDS}, ""))
	require.NoError(t, tx.AddDescriptor(model.Descriptor{Handle: "metric1", Kind: model.KindNumericMetric}, "mds1"))
	_, err := tx.Commit()
	require.NoError(t, err)
}

func TestStore_emptyAtStart(t *testing.T) {
	store := newStore(t)
	snap := store.ReadSnapshot()
	assert.Equal(t, uint64(0), snap.MdibVersion())
	assert.Equal(t, 0, snap.Len())
}

func TestTx_addDescriptor_incrementsMdibVersion(t *testing.T) {
	store := newStore(t)
	addMDS(t, store)
	snap := store.ReadSnapshot()
	assert.Equal(t, uint64(1), snap.MdibVersion())
	assert.Equal(t, 2, snap.Len())

	e, ok := snap.Lookup("metric1")
	require.True(t, ok)
	assert.Equal(t, model.Handle("mds1"), e.Descriptor.ParentHandle)
	assert.Equal(t, uint64(0), e.Descriptor.DescriptorVersion)
}

func TestTx_handleCollision(t *testing.T) {
	store := newStore(t)
	addMDS(t, store)
	tx := store.BeginTransaction(mdib.DescriptionTransaction)
	err := tx.AddDescriptor(model.Descriptor{Handle: "metric1", Kind: model.KindNumericMetric}, "mds1")
	var txErr *mdib.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, mdib.HandleCollision, txErr.Kind)
	tx.Abort()
}

func TestTx_unknownHandle(t *testing.T) {
	store := newStore(t)
	addMDS(t, store)
	tx := store.BeginTransaction(mdib.MetricTransaction)
	err := tx.UpdateState("nope", func(s *model.State) {})
	var txErr *mdib.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, mdib.UnknownHandle, txErr.Kind)
	tx.Abort()
}

func TestTx_updateState_onlyTouchedEntityVersionBumps(t *testing.T) {
	store := newStore(t)
	addMDS(t, store)

	tx := store.BeginTransaction(mdib.MetricTransaction)
	require.NoError(t, tx.UpdateState("metric1", func(s *model.State) {
		s.Metric = &model.MetricState{NumericValue: 42, HasNumericValue: true}
	}))
	report, err := tx.Commit()
	require.NoError(t, err)
	assert.Equal(t, mdib.EpisodicMetricReport, report.Action)
	assert.Len(t, report.Updated, 1)

	snap := store.ReadSnapshot()
	assert.Equal(t, uint64(2), snap.MdibVersion())

	metric, _ := snap.Lookup("metric1")
	assert.Equal(t, uint64(1), metric.States[0].StateVersion)
	assert.Equal(t, 42.0, metric.States[0].Metric.NumericValue)

	mds, _ := snap.Lookup("mds1")
	assert.Equal(t, uint64(0), mds.States[0].StateVersion, "untouched entity must not have its version bumped")
}

func TestContextState_onlyMutatedInstanceVersionBumps(t *testing.T) {
	store := newStore(t)
	tx := store.BeginTransaction(mdib.DescriptionTransaction)
	require.NoError(t, tx.AddDescriptor(model.Descriptor{Handle: "mds1", Kind: model.KindMDS}, ""))
	require.NoError(t, tx.AddDescriptor(model.Descriptor{Handle: "patctx", Kind: model.KindPatientContext}, "mds1"))
	require.NoError(t, tx.UpdateContextState("patctx", "inst1", true, func(s *model.State) {
		s.Context.ContextAssociation = "Assoc"
	}))
	require.NoError(t, tx.UpdateContextState("patctx", "inst2", true, func(s *model.State) {
		s.Context.ContextAssociation = "Assoc"
	}))
	_, err := tx.Commit()
	require.NoError(t, err)

	tx2 := store.BeginTransaction(mdib.ContextTransaction)
	require.NoError(t, tx2.UpdateContextState("patctx", "inst1", true, func(s *model.State) {
		s.Context.ContextAssociation = "Dis"
	}))
	_, err = tx2.Commit()
	require.NoError(t, err)

	snap := store.ReadSnapshot()
	entity, ok := snap.Lookup("patctx")
	require.True(t, ok)
	require.Len(t, entity.States, 2)
	for _, s := range entity.States {
		switch s.MultiStateHandle {
		case "inst1":
			assert.Equal(t, uint64(2), s.StateVersion, "inst1 was mutated again and must bump")
		case "inst2":
			assert.Equal(t, uint64(1), s.StateVersion, "inst2 was untouched in tx2 and must keep its version")
		}
	}
}

func TestTx_removeDescriptor_cascadesToChildren(t *testing.T) {
	store := newStore(t)
	addMDS(t, store)

	tx := store.BeginTransaction(mdib.DescriptionTransaction)
	require.NoError(t, tx.RemoveDescriptor("mds1"))
	_, err := tx.Commit()
	require.NoError(t, err)

	snap := store.ReadSnapshot()
	assert.Equal(t, 0, snap.Len())
	_, ok := snap.Lookup("metric1")
	assert.False(t, ok)
}

func TestTx_wrongKindRejected(t *testing.T) {
	store := newStore(t)
	addMDS(t, store)

	tx := store.BeginTransaction(mdib.AlertTransaction)
	err := tx.UpdateState("metric1", func(s *model.State) {})
	var txErr *mdib.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, mdib.TypeMismatch, txErr.Kind)
	tx.Abort()
}

func TestContextState_oneAssociationChangePerTxPerInstance(t *testing.T) {
	store := newStore(t)
	tx := store.BeginTransaction(mdib.DescriptionTransaction)
	require.NoError(t, tx.AddDescriptor(model.Descriptor{Handle: "mds1", Kind: model.KindMDS}, ""))
	require.NoError(t, tx.AddDescriptor(model.Descriptor{Handle: "patctx", Kind: model.KindPatientContext}, "mds1"))
	_, err := tx.Commit()
	require.NoError(t, err)

	tx2 := store.BeginTransaction(mdib.ContextTransaction)
	require.NoError(t, tx2.UpdateContextState("patctx", "inst1", true, func(s *model.State) {
		s.Context.ContextAssociation = "Assoc"
	}))
	err = tx2.UpdateContextState("patctx", "inst1", true, func(s *model.State) {
		s.Context.ContextAssociation = "Dis"
	})
	var txErr *mdib.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, mdib.InvariantViolation, txErr.Kind)
	tx2.Abort()
}

func TestStore_serializesWriters(t *testing.T) {
	store := newStore(t)
	addMDS(t, store)

	tx := store.BeginTransaction(mdib.MetricTransaction)
	unblocked := make(chan struct{})
	go func() {
		tx2 := store.BeginTransaction(mdib.MetricTransaction)
		tx2.Abort()
		close(unblocked)
	}()

	tx.Abort()
	select {
	case <-unblocked:
	case <-time.After(2 * time.Second):
		t.Fatal("second BeginTransaction never unblocked after first transaction finished")
	}
}

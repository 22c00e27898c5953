// Package export implements the operator-facing snapshot bootstrap/
// diagnostics path (spec.md §6), paralleling the teacher's
// OpExport/OpImport operations but serializing to the canonical
// GetMdibResponse XML document instead of JSONL.
package export

import (
	"fmt"
	"io"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/xmlcodec"
)

type entityState struct {
	handle model.Handle
	multi  bool
	state  model.State
}

func stateKindFor(e model.Entity) mdib.TransactionKind {
	switch {
	case e.Descriptor.Kind.IsMetric():
		return mdib.MetricTransaction
	case e.Descriptor.Kind.IsAlert():
		return mdib.AlertTransaction
	case e.Descriptor.Kind.IsOperation():
		return mdib.OperationTransaction
	case e.Descriptor.Kind.IsContext():
		return mdib.ContextTransaction
	default:
		return mdib.ComponentTransaction
	}
}

// Snapshot writes store's current MDIB to w as the canonical XML
// document.
func Snapshot(store *mdib.Store, w io.Writer) error {
	snap := store.ReadSnapshot()
	// Parents are written before their children so Import can add them
	// in document order.
	var entities []model.Entity
	var walk func(model.Handle)
	walk = func(h model.Handle) {
		for _, c := range snap.Children(h) {
			if e, ok := snap.Lookup(c); ok {
				entities = append(entities, e)
			}
			walk(c)
		}
	}
	walk("")
	doc := xmlcodec.EncodeDocument(snap.MdibVersion(), snap.SequenceID(), entities)
	out, err := xmlcodec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("export: marshal snapshot: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// Import reads a canonical XML document from r and seeds store with its
// descriptors and states in a single Description transaction followed by
// per-category state transactions. Import is only valid against an empty
// store; it does not merge with existing content.
func Import(store *mdib.Store, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("export: read snapshot: %w", err)
	}
	_, _, entities, err := xmlcodec.DecodeDocument(raw)
	if err != nil {
		return fmt.Errorf("export: decode snapshot: %w", err)
	}
	if store.ReadSnapshot().Len() != 0 {
		return fmt.Errorf("export: import target is not empty")
	}

	tx := store.BeginTransaction(mdib.DescriptionTransaction)
	for _, e := range entities {
		if err := tx.AddDescriptor(e.Descriptor, e.Descriptor.ParentHandle); err != nil {
			tx.Abort()
			return fmt.Errorf("export: import descriptor %s: %w", e.Descriptor.Handle, err)
		}
	}
	if _, err := tx.Commit(); err != nil {
		return fmt.Errorf("export: commit descriptors: %w", err)
	}

	byKind := map[mdib.TransactionKind][]entityState{}
	for _, e := range entities {
		kind := stateKindFor(e)
		for _, st := range e.States {
			byKind[kind] = append(byKind[kind], entityState{handle: e.Descriptor.Handle, multi: e.Descriptor.Kind.IsMultiState(), state: st})
		}
	}
	for kind, states := range byKind {
		tx := store.BeginTransaction(kind)
		for _, es := range states {
			st := es.state
			var err error
			if es.multi {
				err = tx.UpdateContextState(es.handle, st.MultiStateHandle, false, func(s *model.State) { *s = st })
			} else {
				err = tx.UpdateState(es.handle, func(s *model.State) { *s = st })
			}
			if err != nil {
				tx.Abort()
				return fmt.Errorf("export: import state for %s: %w", es.handle, err)
			}
		}
		if _, err := tx.Commit(); err != nil {
			return fmt.Errorf("export: commit states: %w", err)
		}
	}
	return nil
}

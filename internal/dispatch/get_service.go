package dispatch

import (
	"context"

	"github.com/sdcgo/sdc-core/internal/mdib"
	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/xmlcodec"
)

// GetService answers the read-only MDIB query operations against a
// single mdib.Store.
type GetService struct {
	store *mdib.Store
}

// NewGetService builds a GetService over store.
func NewGetService(store *mdib.Store) *GetService { return &GetService{store: store} }

// GetMdib returns the canonical full-MDIB document: every descriptor and
// every state at the current version.
func (g *GetService) GetMdib(_ context.Context) ([]byte, error) {
	snap := g.store.ReadSnapshot()
	doc := xmlcodec.EncodeDocument(snap.MdibVersion(), snap.SequenceID(), selectSubtrees(snap, snap.Children("")))
	return xmlcodec.Marshal(doc)
}

// GetMdDescription returns every descriptor (no states), optionally
// restricted to handles and their descendants when handles is non-empty.
func (g *GetService) GetMdDescription(_ context.Context, handles []model.Handle) ([]byte, error) {
	snap := g.store.ReadSnapshot()
	entities := selectSubtrees(snap, handles)
	for i := range entities {
		entities[i].States = nil
	}
	doc := xmlcodec.EncodeDocument(snap.MdibVersion(), snap.SequenceID(), entities)
	return xmlcodec.Marshal(doc)
}

// GetMdState returns the states for the given handles (or every state if
// handles is empty), without re-sending descriptor content.
func (g *GetService) GetMdState(_ context.Context, handles []model.Handle) ([]byte, error) {
	snap := g.store.ReadSnapshot()
	entities := selectSubtrees(snap, handles)
	doc := xmlcodec.EncodeDocument(snap.MdibVersion(), snap.SequenceID(), entities)
	doc.Descriptors = nil
	return xmlcodec.Marshal(doc)
}

func selectSubtrees(snap *mdib.Snapshot, handles []model.Handle) []model.Entity {
	if len(handles) == 0 {
		return snap.All()
	}
	seen := make(map[model.Handle]bool)
	var out []model.Entity
	var walk func(model.Handle)
	walk = func(h model.Handle) {
		if seen[h] {
			return
		}
		seen[h] = true
		if e, ok := snap.Lookup(h); ok {
			out = append(out, e)
		}
		for _, c := range snap.Children(h) {
			walk(c)
		}
	}
	for _, h := range handles {
		walk(h)
	}
	return out
}

// ContextService answers GetContextStates, the context-specific subset of
// GetMdState (spec.md §4.G).
type ContextService struct {
	store *mdib.Store
}

// NewContextService builds a ContextService over store.
func NewContextService(store *mdib.Store) *ContextService { return &ContextService{store: store} }

// GetContextStates returns every context entity's states, optionally
// restricted to the given descriptor handles.
func (c *ContextService) GetContextStates(_ context.Context, handles []model.Handle) ([]byte, error) {
	snap := c.store.ReadSnapshot()
	var entities []model.Entity
	all := snap.All()
	if len(handles) == 0 {
		for _, e := range all {
			if e.Descriptor.Kind.IsContext() {
				entities = append(entities, e)
			}
		}
	} else {
		set := make(map[model.Handle]bool, len(handles))
		for _, h := range handles {
			set[h] = true
		}
		for _, e := range all {
			if e.Descriptor.Kind.IsContext() && set[e.Descriptor.Handle] {
				entities = append(entities, e)
			}
		}
	}
	doc := xmlcodec.EncodeDocument(snap.MdibVersion(), snap.SequenceID(), entities)
	doc.Descriptors = nil
	return xmlcodec.Marshal(doc)
}

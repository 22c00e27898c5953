package mdib

import "github.com/sdcgo/sdc-core/internal/model"

// entityNode is the persistent-map value: an immutable *model.Entity plus
// the children handles, so a Snapshot can walk the containment tree
// without a separate index structure. Entities are never mutated in
// place once published in a Snapshot; a transaction that touches one
// builds a replacement node and only that node (and the top-level map
// header) is new — every untouched entity is shared by pointer with the
// previous snapshot.
type entityNode struct {
	entity   *model.Entity
	children []model.Handle
}

// Snapshot is an immutable view of the MDIB at one MdibVersion. Readers
// hold a Snapshot for as long as they like; it is never mutated after
// read_snapshot returns it, so concurrent reads never block each other or
// the single writer (spec.md §9 concurrency model).
type Snapshot struct {
	version  uint64
	sequence string
	nodes    map[model.Handle]entityNode
	// rootHandles holds top-level MDS handles, preserving insertion order
	// for deterministic GetMdib responses.
	rootHandles []model.Handle
}

// MdibVersion is the version stamped on this snapshot.
func (s *Snapshot) MdibVersion() uint64 { return s.version }

// SequenceID is the WS-Discovery/subscription sequence identifier this
// snapshot was produced under (spec.md §4.F).
func (s *Snapshot) SequenceID() string { return s.sequence }

// Lookup returns the entity for handle and whether it exists.
func (s *Snapshot) Lookup(h model.Handle) (model.Entity, bool) {
	n, ok := s.nodes[h]
	if !ok {
		return model.Entity{}, false
	}
	return *n.entity, true
}

// Children returns the direct child handles of h (or the MDS roots if h
// is empty).
func (s *Snapshot) Children(h model.Handle) []model.Handle {
	if h == "" {
		return append([]model.Handle(nil), s.rootHandles...)
	}
	n, ok := s.nodes[h]
	if !ok {
		return nil
	}
	return append([]model.Handle(nil), n.children...)
}

// All returns every entity in the snapshot. Order is unspecified; callers
// needing deterministic output should walk from root via Children.
func (s *Snapshot) All() []model.Entity {
	out := make([]model.Entity, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n.entity)
	}
	return out
}

// Len reports the number of entities in the snapshot.
func (s *Snapshot) Len() int { return len(s.nodes) }

// emptySnapshot is the zero MDIB: no entities, version 0.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		version: 0,
		nodes:   make(map[model.Handle]entityNode),
	}
}

// clone builds the mutable working copy a transaction writes into. The
// node map is shallow-copied (new map header, shared entityNode values)
// so untouched entities cost one pointer copy each; only nodes the
// transaction actually replaces get a fresh *model.Entity.
func (s *Snapshot) clone() *Snapshot {
	nodes := make(map[model.Handle]entityNode, len(s.nodes))
	for h, n := range s.nodes {
		nodes[h] = n
	}
	return &Snapshot{
		version:     s.version,
		sequence:    s.sequence,
		nodes:       nodes,
		rootHandles: append([]model.Handle(nil), s.rootHandles...),
	}
}

package mdib

import "github.com/sdcgo/sdc-core/internal/model"

// TransactionKind is the closed set of transaction categories spec.md
// §4.E names. Each kind restricts which typed operations the transaction
// accepts: an operation outside the kind fails with InvariantViolation,
// and a state update on an entity of another category fails with
// TypeMismatch.
type TransactionKind string

const (
	DescriptionTransaction TransactionKind = "Description"
	MetricTransaction      TransactionKind = "Metric"
	AlertTransaction       TransactionKind = "Alert"
	OperationTransaction   TransactionKind = "Operation"
	ComponentTransaction   TransactionKind = "Component"
	ContextTransaction     TransactionKind = "Context"
)

// stateKey identifies one versioned state instance: a descriptor handle
// plus its MultiStateHandle (empty for single-state entities). Commit
// bumps StateVersion only for instances actually named by a stateKey in
// Tx.touchedStates, never for every State an entity happens to own.
type stateKey struct {
	handle model.Handle
	msh    model.MultiStateHandle
}

// Tx is an in-flight mutation against one Store. A Tx is not safe for
// concurrent use; the Store serializes transactions one at a time
// (spec.md §9's single-writer rule) so callers never need their own
// locking around a Tx.
type Tx struct {
	store   *Store
	kind    TransactionKind
	base    *Snapshot
	work    *Snapshot
	touched map[model.Handle]bool
	// touchedStates records exactly which (descriptor handle, multi-state
	// handle) instances a mutation actually touched this transaction, so
	// Commit can bump StateVersion per-instance instead of for every
	// sibling state a touched descriptor happens to own (spec.md §3:
	// unchanged entities — and unchanged multi-state instances — retain
	// their version).
	touchedStates map[stateKey]bool
	// contextAssociated tracks, per multi-state handle, whether this
	// transaction has already performed an association change for it —
	// enforces the "one associate/disassociate per instance per tx" rule
	// (SPEC_FULL.md Open Question 2).
	contextAssociated map[model.MultiStateHandle]bool
	err               error
	finished          bool
}

func (tx *Tx) touch(h model.Handle) {
	if tx.touched == nil {
		tx.touched = make(map[model.Handle]bool)
	}
	tx.touched[h] = true
}

// touchState marks one state instance as mutated this transaction, for
// Commit's per-instance StateVersion bump.
func (tx *Tx) touchState(h model.Handle, msh model.MultiStateHandle) {
	if tx.touchedStates == nil {
		tx.touchedStates = make(map[stateKey]bool)
	}
	tx.touchedStates[stateKey{handle: h, msh: msh}] = true
}

func (tx *Tx) fail(err error) error {
	if tx.err == nil {
		tx.err = err
	}
	return err
}

// requireKind rejects an operation that doesn't match the transaction's
// declared kind, except descriptor add/remove which only Description
// transactions may perform and state-only mutations which every other
// kind performs.
func (tx *Tx) requireKind(want TransactionKind) error {
	if tx.kind != want {
		return tx.fail(newErr(InvariantViolation, "", "operation not valid for "+string(tx.kind)+" transaction"))
	}
	return nil
}

// AddDescriptor inserts a new descriptor (and its initial state, for
// single-state kinds) under parent. Only valid within a Description
// transaction.
func (tx *Tx) AddDescriptor(d model.Descriptor, parent model.Handle) error {
	if err := tx.requireKind(DescriptionTransaction); err != nil {
		return err
	}
	if d.Handle == "" {
		return tx.fail(newErr(InvariantViolation, d.Handle, "empty handle"))
	}
	if _, exists := tx.work.nodes[d.Handle]; exists {
		return tx.fail(newErr(HandleCollision, d.Handle, "handle already present"))
	}
	if parent != "" {
		parentNode, ok := tx.work.nodes[parent]
		if !ok {
			return tx.fail(newErr(UnknownHandle, parent, "parent descriptor not found"))
		}
		parentNode.children = append(parentNode.children, d.Handle)
		tx.work.nodes[parent] = parentNode
		tx.touch(parent)
	} else {
		tx.work.rootHandles = append(tx.work.rootHandles, d.Handle)
	}
	d.ParentHandle = parent
	d.DescriptorVersion = 0
	entity := &model.Entity{Descriptor: d}
	if !d.Kind.IsMultiState() {
		entity.States = []model.State{{DescriptorHandle: d.Handle, StateVersion: 0}}
	}
	tx.work.nodes[d.Handle] = entityNode{entity: entity}
	tx.touch(d.Handle)
	return nil
}

// RemoveDescriptor removes a descriptor, all of its states, and —
// recursively — every descendant descriptor (spec.md §4.E removal
// cascade). Only valid within a Description transaction.
func (tx *Tx) RemoveDescriptor(h model.Handle) error {
	if err := tx.requireKind(DescriptionTransaction); err != nil {
		return err
	}
	node, ok := tx.work.nodes[h]
	if !ok {
		return tx.fail(newErr(UnknownHandle, h, "descriptor not found"))
	}
	tx.removeSubtree(h, node)
	if node.entity.Descriptor.ParentHandle == "" {
		tx.work.rootHandles = removeHandle(tx.work.rootHandles, h)
	} else {
		parent := node.entity.Descriptor.ParentHandle
		if pn, ok := tx.work.nodes[parent]; ok {
			pn.children = removeHandle(pn.children, h)
			tx.work.nodes[parent] = pn
			tx.touch(parent)
		}
	}
	return nil
}

func (tx *Tx) removeSubtree(h model.Handle, node entityNode) {
	for _, child := range node.children {
		if cn, ok := tx.work.nodes[child]; ok {
			tx.removeSubtree(child, cn)
		}
	}
	delete(tx.work.nodes, h)
	tx.touch(h)
}

func removeHandle(list []model.Handle, h model.Handle) []model.Handle {
	out := make([]model.Handle, 0, len(list))
	for _, x := range list {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// UpdateDescriptor replaces the descriptor content (not its states) for
// an existing handle, e.g. changing SafetyClassification or a metric's
// AllowedValues. Only valid within a Description transaction.
func (tx *Tx) UpdateDescriptor(h model.Handle, mutate func(*model.Descriptor)) error {
	if err := tx.requireKind(DescriptionTransaction); err != nil {
		return err
	}
	node, ok := tx.work.nodes[h]
	if !ok {
		return tx.fail(newErr(UnknownHandle, h, "descriptor not found"))
	}
	entity := node.entity.Clone()
	mutate(&entity.Descriptor)
	entity.Descriptor.Handle = h
	node.entity = &entity
	tx.work.nodes[h] = node
	tx.touch(h)
	return nil
}

// UpdateState replaces the single state of a non-multi-state entity. The
// transaction kind must match the entity's descriptor kind category
// (Metric/Alert/Operation/Component).
func (tx *Tx) UpdateState(h model.Handle, mutate func(*model.State)) error {
	node, ok := tx.work.nodes[h]
	if !ok {
		return tx.fail(newErr(UnknownHandle, h, "entity not found"))
	}
	if node.entity.Descriptor.Kind.IsMultiState() {
		return tx.fail(newErr(TypeMismatch, h, "use UpdateContextState for multi-state entities"))
	}
	if err := tx.checkKindMatch(node.entity.Descriptor.Kind); err != nil {
		return err
	}
	entity := node.entity.Clone()
	if len(entity.States) == 0 {
		return tx.fail(newErr(InvariantViolation, h, "entity has no state"))
	}
	mutate(&entity.States[0])
	node.entity = &entity
	tx.work.nodes[h] = node
	tx.touch(h)
	tx.touchState(h, "")
	return nil
}

// UpdateContextState updates (or, for a handle never seen, inserts) one
// multi-state instance on a context entity. changesAssociation must be
// true when this call changes ContextAssociation, so the
// one-change-per-instance-per-tx rule can be enforced.
func (tx *Tx) UpdateContextState(h model.Handle, msh model.MultiStateHandle, changesAssociation bool, mutate func(*model.State)) error {
	// ContextTransaction is the normal path; DescriptionTransaction is
	// also allowed so a Description transaction can seed the initial
	// multi-state of a context descriptor it just added (spec.md §4.E's
	// "may touch states of the descriptors it creates/removes" exception).
	if tx.kind != ContextTransaction && tx.kind != DescriptionTransaction {
		return tx.fail(newErr(InvariantViolation, "", "operation not valid for "+string(tx.kind)+" transaction"))
	}
	node, ok := tx.work.nodes[h]
	if !ok {
		return tx.fail(newErr(UnknownHandle, h, "entity not found"))
	}
	if !node.entity.Descriptor.Kind.IsContext() {
		return tx.fail(newErr(TypeMismatch, h, "not a context descriptor"))
	}
	if changesAssociation {
		if tx.contextAssociated == nil {
			tx.contextAssociated = make(map[model.MultiStateHandle]bool)
		}
		if tx.contextAssociated[msh] {
			return tx.fail(newErr(InvariantViolation, h, "context instance already re-associated in this transaction"))
		}
		tx.contextAssociated[msh] = true
	}
	entity := node.entity.Clone()
	idx := -1
	for i := range entity.States {
		if entity.States[i].MultiStateHandle == msh {
			idx = i
			break
		}
	}
	if idx < 0 {
		entity.States = append(entity.States, model.State{
			DescriptorHandle: h,
			MultiStateHandle: msh,
			Context:          &model.ContextState{},
		})
		idx = len(entity.States) - 1
	}
	mutate(&entity.States[idx])
	node.entity = &entity
	tx.work.nodes[h] = node
	tx.touch(h)
	tx.touchState(h, msh)
	return nil
}

func (tx *Tx) checkKindMatch(k model.DescriptorKind) error {
	switch tx.kind {
	case MetricTransaction:
		if !k.IsMetric() {
			return tx.fail(newErr(TypeMismatch, "", "metric transaction applied to non-metric entity"))
		}
	case AlertTransaction:
		if !k.IsAlert() {
			return tx.fail(newErr(TypeMismatch, "", "alert transaction applied to non-alert entity"))
		}
	case OperationTransaction:
		if !k.IsOperation() {
			return tx.fail(newErr(TypeMismatch, "", "operation transaction applied to non-operation entity"))
		}
	case ComponentTransaction:
		switch k {
		case model.KindMDS, model.KindVMD, model.KindChannel, model.KindSco, model.KindBattery, model.KindClock:
		default:
			return tx.fail(newErr(TypeMismatch, "", "component transaction applied to non-component entity"))
		}
	}
	return nil
}

// Commit atomically publishes the transaction's changes: the MDIB version
// increments by exactly one, every touched entity's own version
// increments by exactly one, and every untouched entity is unchanged
// (spec.md §4.E, tested property in §8). Commit returns the resulting
// Report describing what changed, for the reporting pipeline to
// distribute.
func (tx *Tx) Commit() (*Report, error) {
	if tx.finished {
		return nil, newErr(InvariantViolation, "", "transaction already finished")
	}
	tx.finished = true
	if tx.err != nil {
		tx.store.release()
		return nil, tx.err
	}

	newVersion := tx.base.version + 1
	for h := range tx.touched {
		node, ok := tx.work.nodes[h]
		if !ok {
			continue // removed
		}
		entity := node.entity.Clone()
		if tx.kind == DescriptionTransaction {
			if _, existedBefore := tx.base.nodes[h]; existedBefore {
				entity.Descriptor.DescriptorVersion++
			}
		}
		for i := range entity.States {
			if tx.touchedStates[stateKey{handle: h, msh: entity.States[i].MultiStateHandle}] {
				entity.States[i].StateVersion++
			}
		}
		node.entity = &entity
		tx.work.nodes[h] = node
	}
	tx.work.version = newVersion

	report := buildReport(tx.kind, newVersion, tx.base, tx.work, tx.touched)
	tx.store.publish(tx.work)
	return report, nil
}

// Abort discards the transaction without publishing anything and
// releases the writer lock so another transaction may begin.
func (tx *Tx) Abort() {
	if tx.finished {
		return
	}
	tx.finished = true
	tx.store.release()
}

// Package mdib implements the provider-side Medical Device Information
// Base: a transactional, versioned store over the descriptor/state tree
// defined in package model. Readers take an immutable Snapshot (a brief
// read lock guards only the pointer); writers
// serialize through a single Store.BeginTransaction at a time, matching
// the single-writer/many-readers concurrency model spec.md §9 requires.
package mdib

import (
	"sync"

	"github.com/sdcgo/sdc-core/internal/runtime"
)

// Store is the provider's MDIB. It is safe for concurrent use: ReadSnapshot
// waits only for a pointer swap in progress, never for an open
// transaction, and BeginTransaction serializes writers on an internal
// mutex rather than exposing locking to callers.
type Store struct {
	rt *runtime.Runtime

	mu      sync.Mutex // serializes writers only
	current *Snapshot  // written under curMu's write lock; read under its read lock
	curMu   sync.RWMutex
}

// NewStore builds an empty MDIB at version 0.
func NewStore(rt *runtime.Runtime) *Store {
	s := &Store{rt: rt, current: emptySnapshot()}
	return s
}

// ReadSnapshot returns the current published Snapshot. Multiple readers
// may call this concurrently with each other and with an in-flight
// writer transaction; each sees a self-consistent, never-mutated view.
func (s *Store) ReadSnapshot() *Snapshot {
	s.curMu.RLock()
	defer s.curMu.RUnlock()
	return s.current
}

// BeginTransaction starts a new mutation of the given kind against the
// currently published snapshot. Only one transaction may be open at a
// time: BeginTransaction blocks on the store's writer lock until any
// prior transaction has committed or aborted, and the returned Tx must be
// finished with Commit or Abort to release it (spec.md §6
// max_concurrent_transactions=1).
func (s *Store) BeginTransaction(kind TransactionKind) *Tx {
	s.mu.Lock()
	base := s.ReadSnapshot()
	work := base.clone()
	return &Tx{store: s, kind: kind, base: base, work: work}
}

// publish swaps in the new snapshot under curMu's write lock so ReadSnapshot
// never observes a partially built one, then releases the writer lock.
func (s *Store) publish(snap *Snapshot) {
	s.curMu.Lock()
	s.current = snap
	s.curMu.Unlock()
	s.mu.Unlock()
}

// release drops the writer lock without publishing anything (Tx.Abort).
func (s *Store) release() {
	s.mu.Unlock()
}

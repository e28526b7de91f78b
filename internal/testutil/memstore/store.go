// Package memstore is an in-memory implementation of every repository and the
// transaction manager, for service-level tests.
//
// A transaction holds one global lock for its whole duration and works on a
// snapshot that is discarded on error, so rollbacks and lock serialization behave
// like the database at a coarser grain.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"stockpost/internal/core/id"
	"stockpost/internal/core/outbox"
	"stockpost/internal/core/tx"
	"stockpost/internal/domain/adjustment"
	"stockpost/internal/domain/audit"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/pricehistory"
)

type posKey struct {
	tenantID string
	key      inventory.Key
}

// AuditRecord is a stored audit entry.
type AuditRecord struct {
	TenantID string
	ActorID  string
	audit.Entry
}

// OutboxRecord is a stored outbox event.
type OutboxRecord struct {
	TenantID string
	outbox.Event
}

type state struct {
	adjustments map[id.ID]adjustment.Adjustment
	lines       map[id.ID][]adjustment.Line
	positions   map[posKey]inventory.Position
	journals    map[id.ID]ledger.Journal
	rows        []ledger.Row
	history     []pricehistory.Record
	outbox      []OutboxRecord
	audit       []AuditRecord
	numbers     map[string]int64
}

func newState() state {
	return state{
		adjustments: make(map[id.ID]adjustment.Adjustment),
		lines:       make(map[id.ID][]adjustment.Line),
		positions:   make(map[posKey]inventory.Position),
		journals:    make(map[id.ID]ledger.Journal),
		numbers:     make(map[string]int64),
	}
}

func (s state) clone() state {
	c := state{
		adjustments: maps.Clone(s.adjustments),
		lines:       make(map[id.ID][]adjustment.Line, len(s.lines)),
		positions:   maps.Clone(s.positions),
		journals:    maps.Clone(s.journals),
		rows:        slices.Clone(s.rows),
		history:     slices.Clone(s.history),
		outbox:      slices.Clone(s.outbox),
		audit:       slices.Clone(s.audit),
		numbers:     maps.Clone(s.numbers),
	}
	for k, v := range s.lines {
		c.lines[k] = slices.Clone(v)
	}
	return c
}

// Store holds all state. The exported hooks inject failures; set them before use.
type Store struct {
	mu sync.Mutex
	st state

	master *masterData

	rollbacks int

	// FailLock is consulted before a position is locked.
	FailLock func(key inventory.Key) error
	// FailLedgerRows is consulted before ledger rows are inserted.
	FailLedgerRows func(rows []ledger.Row) error
	// FailPriceHistory is consulted before a price history record is inserted.
	FailPriceHistory func(rec *pricehistory.Record) error
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState(), master: newMasterData()}
}

type txKey struct{ s *Store }

func (s *Store) inTx(ctx context.Context) bool {
	return ctx.Value(txKey{s}) != nil
}

// guard serializes calls made outside a transaction with running transactions.
func (s *Store) guard(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

var _ tx.Manager = (*Store)(nil)

// RunInTransaction runs fn holding the store lock. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{s}, true)); err != nil {
		s.st = snapshot
		s.rollbacks++
		return err
	}
	return nil
}

// RunInSavepoint restores the state as of the call when fn fails.
func (s *Store) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.inTx(ctx) {
		return s.RunInTransaction(ctx, fn)
	}
	snapshot := s.st.clone()
	if err := fn(ctx); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Rollbacks counts transactions that ended in rollback.
func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

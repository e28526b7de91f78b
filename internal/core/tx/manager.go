// Package tx defines the unit-of-work boundary the domain services run in.
package tx

import (
	"context"
)

// Manager runs functions inside a transaction carried by ctx.
// The postgres implementation is postgres.TxManager.
type Manager interface {
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	// A call inside an active transaction joins it.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSavepoint executes fn inside a SAVEPOINT of the active transaction.
	// A failing fn rolls back to the savepoint only and the outer transaction stays usable.
	// Without an active transaction it behaves like RunInTransaction.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

// Func adapts plain functions to Manager for tests and single-connection tools.
// Both methods call fn directly.
type Func func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction calls f.
func (f Func) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// RunInSavepoint calls f.
func (f Func) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

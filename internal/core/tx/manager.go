// Package tx declares the transaction contracts the domain services run
// under. The postgres and memory storage packages implement them.
package tx

import (
	"context"
)

// Manager runs fn atomically: fn's error rolls everything back. A nested
// call joins the transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SerializableManager adds the isolation used by ledger mutations
// (reservation, settlement, bulk stock overwrite). A concurrent writer on
// the same rows makes one side fail with apperror.CodeConcurrentModification.
type SerializableManager interface {
	Manager
	RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager runs fn against one consistent snapshot. Writes fail.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// LedgerManager is everything a storage backend provides.
type LedgerManager interface {
	SerializableManager
	ReadOnlyManager
}

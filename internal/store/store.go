// Package store defines the transactional state contract the engine runs
// against. A store provides per-account read-then-write transactions with
// optimistic concurrency: Update applies the callback's writes only if
// nothing it read changed in the meantime, and reports ErrConflict
// otherwise. Retrying is the caller's job, never the store's, and a retry
// must rerun the whole callback against a fresh snapshot.
package store

import (
	"context"
	"errors"

	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/types"
)

var (
	// ErrConflict signals an optimistic-concurrency collision: something
	// read inside the transaction changed before commit.
	ErrConflict = errors.New("store: write conflict")

	// ErrNotFound is returned for a missing account, position, or order.
	ErrNotFound = errors.New("store: not found")
)

// Tx is one transaction's view of the state. Reads observe a consistent
// snapshot plus the transaction's own writes. Ledger entries are append-only
// and never mutated.
type Tx interface {
	Account(ctx context.Context, id string) (model.Account, error)
	PutAccount(ctx context.Context, a model.Account) error

	Position(ctx context.Context, accountID, symbol string) (model.Position, error)
	PutPosition(ctx context.Context, p model.Position) error
	DeletePosition(ctx context.Context, accountID, symbol string) error
	Positions(ctx context.Context, accountID string) ([]model.Position, error)

	AppendEntry(ctx context.Context, e model.LedgerEntry) error
	// RecentEntries returns ledger entries for an account, newest first,
	// at most limit. An empty type matches all entry types.
	RecentEntries(ctx context.Context, accountID string, typ types.EntryType, limit int) ([]model.LedgerEntry, error)

	LimitOrder(ctx context.Context, accountID, orderID string) (model.LimitOrder, error)
	PutLimitOrder(ctx context.Context, o model.LimitOrder) error
	LimitOrders(ctx context.Context, accountID string) ([]model.LimitOrder, error)
}

type Store interface {
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn func(Tx) error) error
	// Update runs fn and commits its writes atomically, returning
	// ErrConflict if any record fn read was modified concurrently. fn must
	// be safe to rerun from scratch.
	Update(ctx context.Context, fn func(Tx) error) error
}

// UpdateWithRetry reruns an Update up to attempts times on ErrConflict.
// The executor keeps its own loop (it counts conflicts); this helper serves
// the accrual, recovery, and order-bookkeeping paths.
func UpdateWithRetry(ctx context.Context, s Store, attempts int, fn func(Tx) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = s.Update(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}

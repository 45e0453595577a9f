// Package accounts opens paper accounts and serves their state. Reads go
// through settlement first: interest accrues and any credit excess is
// recovered before the caller sees balances.
package accounts

import (
	"context"
	"errors"
	"time"

	"lv-paperbroker/internal/credit"
	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/types"
)

const historyLimit = 200

var ErrInvalidAccountID = errors.New("account id is required")

type Service struct {
	store           store.Store
	credit          *credit.Service
	startingBalance int64
	creditLimit     int64
	now             func() time.Time
}

func NewService(st store.Store, cr *credit.Service, startingBalance, creditLimit int64) *Service {
	return &Service{
		store:           st,
		credit:          cr,
		startingBalance: startingBalance,
		creditLimit:     creditLimit,
		now:             time.Now,
	}
}

// Open creates an account with the configured starting cash and credit
// line. Opening an existing account is a no-op returning the current state.
func (s *Service) Open(ctx context.Context, accountID string) (model.Account, error) {
	if accountID == "" {
		return model.Account{}, ErrInvalidAccountID
	}
	var out model.Account
	err := store.UpdateWithRetry(ctx, s.store, 5, func(tx store.Tx) error {
		existing, err := tx.Account(ctx, accountID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		out = model.Account{
			ID:              accountID,
			CashBalance:     s.startingBalance,
			CreditLimit:     s.creditLimit,
			UsedCredit:      0,
			StartingBalance: s.startingBalance,
			CreatedAt:       s.now().UTC(),
		}
		return tx.PutAccount(ctx, out)
	})
	if err != nil {
		return model.Account{}, err
	}
	return out, nil
}

// Get settles the account (interest, then forced sells if the interest
// pushed used credit over the limit) and returns the post-settlement state.
func (s *Service) Get(ctx context.Context, accountID string) (model.Account, error) {
	if err := s.credit.AccrueInterest(ctx, accountID); err != nil {
		return model.Account{}, err
	}
	if _, err := s.credit.RecoverFromCreditExcess(ctx, accountID); err != nil {
		return model.Account{}, err
	}
	var out model.Account
	err := s.store.View(ctx, func(tx store.Tx) error {
		acct, err := tx.Account(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return engine.ErrAccountNotFound
			}
			return err
		}
		out = acct
		return nil
	})
	if err != nil {
		return model.Account{}, err
	}
	return out, nil
}

func (s *Service) Portfolio(ctx context.Context, accountID string) ([]model.Position, error) {
	var out []model.Position
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Account(ctx, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return engine.ErrAccountNotFound
			}
			return err
		}
		positions, err := tx.Positions(ctx, accountID)
		if err != nil {
			return err
		}
		out = positions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History returns recent ledger entries, newest first. An empty entry type
// returns all types interleaved.
func (s *Service) History(ctx context.Context, accountID string, typ types.EntryType) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Account(ctx, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return engine.ErrAccountNotFound
			}
			return err
		}
		entries, err := tx.RecentEntries(ctx, accountID, typ, historyLimit)
		if err != nil {
			return err
		}
		out = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

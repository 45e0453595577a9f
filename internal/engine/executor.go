// Package engine is the order executor: the buy/sell/short/cover state
// machine over the transactional store. Each executed order is one atomic
// store update that moves cash, credit, and the position together and
// appends the immutable ledger legs.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"lv-paperbroker/internal/metrics"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/pricing"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/types"
)

// PriceOracle supplies the current quote for a symbol. Implemented by
// marketdata.Store.
type PriceOracle interface {
	Lookup(symbol string) (model.Quote, error)
}

const maxConflictRetries = 5

type Executor struct {
	store          store.Store
	oracle         PriceOracle
	feeRate        decimal.Decimal
	conversionRate decimal.Decimal
	metrics        *metrics.Metrics
}

func NewExecutor(st store.Store, oracle PriceOracle, feeRate, conversionRate decimal.Decimal, m *metrics.Metrics) *Executor {
	return &Executor{store: st, oracle: oracle, feeRate: feeRate, conversionRate: conversionRate, metrics: m}
}

func (e *Executor) FeeRate() decimal.Decimal { return e.feeRate }

// QuotePrice resolves a symbol through the oracle and converts the quote
// into home-currency minor units.
func (e *Executor) QuotePrice(symbol string) (price int64, name string, err error) {
	q, err := e.oracle.Lookup(symbol)
	if err != nil {
		return 0, "", err
	}
	return pricing.EffectivePrice(q.Price, q.Currency, e.conversionRate), q.Name, nil
}

type BuyRequest struct {
	AccountID string
	Symbol    string
	Name      string
	Price     int64 // effective (home-currency) price per share
	Quantity  int64
}

type SellRequest struct {
	AccountID string
	Symbol    string
	Name      string
	Price     int64
	Quantity  int64
	// AllowShort permits the sell to open or extend a short position.
	// When false, selling more than the held long quantity is rejected
	// with ErrInsufficientShares.
	AllowShort bool
}

func classifyBuy(current, qty int64) types.Transition {
	switch {
	case current >= 0:
		return types.TransitionLongIncrease
	case qty <= -current:
		return types.TransitionShortCover
	default:
		return types.TransitionShortCoverFlip
	}
}

func classifySell(current, qty int64) types.Transition {
	switch {
	case current <= 0:
		return types.TransitionShortIncrease
	case qty <= current:
		return types.TransitionLongDecrease
	default:
		return types.TransitionLongDecreaseFlip
	}
}

// ExecuteBuy applies a buy order: increasing a long, covering a short, or
// covering past zero into a long (two ledger legs split at the crossing).
// Cash funds the cost first, any shortfall draws on available credit, and
// margin released by the covered quantity nets against the draw before the
// availability check.
func (e *Executor) ExecuteBuy(ctx context.Context, req BuyRequest) ([]model.LedgerEntry, error) {
	if req.Quantity <= 0 || req.Price <= 0 {
		return nil, e.reject("invalid", ErrInvalidOrder)
	}
	var entries []model.LedgerEntry
	err := e.update(ctx, func(tx store.Tx) error {
		entries = entries[:0]
		acct, err := tx.Account(ctx, req.AccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		pos, held, err := readPosition(ctx, tx, req.AccountID, req.Symbol)
		if err != nil {
			return err
		}
		current, avg := held.qty, held.avg
		cost := pricing.GrossAmount(req.Price, req.Quantity)
		now := time.Now().UTC()

		switch classifyBuy(current, req.Quantity) {
		case types.TransitionLongIncrease:
			if acct.CashBalance+(acct.CreditLimit-acct.UsedCredit) < cost {
				return ErrInsufficientFunds
			}
			cashUse, draw := fundFromCash(acct.CashBalance, cost)
			acct.CashBalance -= cashUse
			acct.UsedCredit += draw

			newQty := current + req.Quantity
			newAvg := req.Price
			if current > 0 {
				newAvg = (avg*current + cost) / newQty
			}
			if err := tx.PutPosition(ctx, e.position(req.AccountID, req.Symbol, req.Name, pos, newQty, newAvg, now)); err != nil {
				return err
			}
			entries = append(entries, e.entry(req.AccountID, req.Symbol, req.Name, types.EntryBuy, req.Price, req.Quantity, cost, 0, ptr(int64(0)), now, withCreditUsed(draw)))

		case types.TransitionShortCover:
			covered := req.Quantity
			release := minInt64(pricing.GrossAmount(avg, covered), acct.UsedCredit)
			if acct.CashBalance+release+(acct.CreditLimit-acct.UsedCredit) < cost {
				return ErrInsufficientFunds
			}
			cashUse, draw := fundFromCash(acct.CashBalance, cost)
			acct.CashBalance += release - cashUse
			acct.UsedCredit += draw - release

			profit := pricing.GrossAmount(avg, covered) - cost
			newQty := current + req.Quantity
			if newQty == 0 {
				if err := tx.DeletePosition(ctx, req.AccountID, req.Symbol); err != nil {
					return err
				}
			} else {
				if err := tx.PutPosition(ctx, e.position(req.AccountID, req.Symbol, req.Name, pos, newQty, avg, now)); err != nil {
					return err
				}
			}
			entries = append(entries, e.entry(req.AccountID, req.Symbol, req.Name, types.EntryCover, req.Price, covered, cost, 0, ptr(profit), now, withCreditUsed(draw), withCreditReleased(release)))

		case types.TransitionShortCoverFlip:
			covered := -current
			opened := req.Quantity - covered
			coverCost := pricing.GrossAmount(req.Price, covered)
			openCost := pricing.GrossAmount(req.Price, opened)
			release := minInt64(pricing.GrossAmount(avg, covered), acct.UsedCredit)
			if acct.CashBalance+release+(acct.CreditLimit-acct.UsedCredit) < cost {
				return ErrInsufficientFunds
			}

			// Cover leg first: its margin release lands in cash before the
			// opening leg funds itself, so the two legs' costs reconcile
			// exactly with the whole order's cost.
			cashCover, drawCover := fundFromCash(acct.CashBalance, coverCost)
			acct.CashBalance += release - cashCover
			acct.UsedCredit += drawCover - release
			profit := pricing.GrossAmount(avg, covered) - coverCost
			entries = append(entries, e.entry(req.AccountID, req.Symbol, req.Name, types.EntryCover, req.Price, covered, coverCost, 0, ptr(profit), now, withCreditUsed(drawCover), withCreditReleased(release)))

			cashOpen, drawOpen := fundFromCash(acct.CashBalance, openCost)
			acct.CashBalance -= cashOpen
			acct.UsedCredit += drawOpen
			entries = append(entries, e.entry(req.AccountID, req.Symbol, req.Name, types.EntryBuy, req.Price, opened, openCost, 0, ptr(int64(0)), now, withCreditUsed(drawOpen)))

			// The long opened at the crossing starts fresh at the
			// execution price.
			if err := tx.PutPosition(ctx, e.position(req.AccountID, req.Symbol, req.Name, pos, opened, req.Price, now)); err != nil {
				return err
			}
		}

		if err := tx.PutAccount(ctx, acct); err != nil {
			return err
		}
		return e.append(ctx, tx, entries)
	})
	if err != nil {
		return nil, e.rejectKnown(err)
	}
	e.countEntries(entries)
	return entries, nil
}

// ExecuteSell applies a sell order: decreasing or closing a long, selling
// past zero into a short (two ledger legs split at the crossing), or
// opening/extending a short outright. Long-close proceeds repay outstanding
// credit first; short legs withhold their entire gross amount as a credit
// draw.
func (e *Executor) ExecuteSell(ctx context.Context, req SellRequest) ([]model.LedgerEntry, error) {
	if req.Quantity <= 0 || req.Price <= 0 {
		return nil, e.reject("invalid", ErrInvalidOrder)
	}
	var entries []model.LedgerEntry
	err := e.update(ctx, func(tx store.Tx) error {
		entries = entries[:0]
		acct, err := tx.Account(ctx, req.AccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		pos, held, err := readPosition(ctx, tx, req.AccountID, req.Symbol)
		if err != nil {
			return err
		}
		current, avg := held.qty, held.avg
		now := time.Now().UTC()

		switch classifySell(current, req.Quantity) {
		case types.TransitionShortIncrease:
			if !req.AllowShort {
				return ErrInsufficientShares
			}
			amount := pricing.GrossAmount(req.Price, req.Quantity)
			fee := pricing.Fee(amount, e.feeRate)
			if acct.CreditLimit-acct.UsedCredit < amount {
				return ErrInsufficientCredit
			}
			// Short proceeds never reach cash; the gross amount is
			// withheld as margin.
			acct.UsedCredit += amount

			newQty := current - req.Quantity
			newAvg := req.Price
			if current < 0 {
				newAvg = (avg*(-current) + amount) / (-newQty)
			}
			if err := tx.PutPosition(ctx, e.position(req.AccountID, req.Symbol, req.Name, pos, newQty, newAvg, now)); err != nil {
				return err
			}
			entries = append(entries, e.entry(req.AccountID, req.Symbol, req.Name, types.EntryShort, req.Price, req.Quantity, amount, fee, ptr(int64(0)), now, withCreditUsed(amount)))

		case types.TransitionLongDecrease:
			amount := pricing.GrossAmount(req.Price, req.Quantity)
			fee := pricing.Fee(amount, e.feeRate)
			proceeds := pricing.NetProceeds(amount, fee)
			profit := proceeds - pricing.GrossAmount(avg, req.Quantity)
			repay := minInt64(acct.UsedCredit, proceeds)
			acct.UsedCredit -= repay
			acct.CashBalance += proceeds - repay

			newQty := current - req.Quantity
			if newQty == 0 {
				if err := tx.DeletePosition(ctx, req.AccountID, req.Symbol); err != nil {
					return err
				}
			} else {
				if err := tx.PutPosition(ctx, e.position(req.AccountID, req.Symbol, req.Name, pos, newQty, avg, now)); err != nil {
					return err
				}
			}
			entries = append(entries, e.entry(req.AccountID, req.Symbol, req.Name, types.EntrySell, req.Price, req.Quantity, amount, fee, ptr(profit), now, withCreditRepaid(repay)))

		case types.TransitionLongDecreaseFlip:
			if !req.AllowShort {
				return ErrInsufficientShares
			}
			sellQty := current
			shortQty := req.Quantity - current
			sellAmount := pricing.GrossAmount(req.Price, sellQty)
			sellFee := pricing.Fee(sellAmount, e.feeRate)
			sellProceeds := pricing.NetProceeds(sellAmount, sellFee)
			profit := sellProceeds - pricing.GrossAmount(avg, sellQty)
			repay := minInt64(acct.UsedCredit, sellProceeds)

			shortAmount := pricing.GrossAmount(req.Price, shortQty)
			shortFee := pricing.Fee(shortAmount, e.feeRate)
			if acct.CreditLimit-(acct.UsedCredit-repay) < shortAmount {
				return ErrInsufficientCredit
			}

			acct.UsedCredit += shortAmount - repay
			acct.CashBalance += sellProceeds - repay

			// The short opened at the crossing starts fresh at the
			// execution price.
			if err := tx.PutPosition(ctx, e.position(req.AccountID, req.Symbol, req.Name, pos, -shortQty, req.Price, now)); err != nil {
				return err
			}
			entries = append(entries,
				e.entry(req.AccountID, req.Symbol, req.Name, types.EntrySell, req.Price, sellQty, sellAmount, sellFee, ptr(profit), now, withCreditRepaid(repay)),
				e.entry(req.AccountID, req.Symbol, req.Name, types.EntryShort, req.Price, shortQty, shortAmount, shortFee, ptr(int64(0)), now, withCreditUsed(shortAmount)),
			)
		}

		if err := tx.PutAccount(ctx, acct); err != nil {
			return err
		}
		return e.append(ctx, tx, entries)
	})
	if err != nil {
		return nil, e.rejectKnown(err)
	}
	e.countEntries(entries)
	return entries, nil
}

// GrantReward credits cash outside of trading and appends a REWARD entry.
func (e *Executor) GrantReward(ctx context.Context, accountID string, amount int64) (model.LedgerEntry, error) {
	if amount <= 0 {
		return model.LedgerEntry{}, ErrInvalidOrder
	}
	var entry model.LedgerEntry
	err := e.update(ctx, func(tx store.Tx) error {
		acct, err := tx.Account(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		acct.CashBalance += amount
		if err := tx.PutAccount(ctx, acct); err != nil {
			return err
		}
		entry = e.entry(accountID, "", "", types.EntryReward, 0, 0, amount, 0, nil, time.Now().UTC())
		return tx.AppendEntry(ctx, entry)
	})
	if err != nil {
		return model.LedgerEntry{}, e.rejectKnown(err)
	}
	e.countEntries([]model.LedgerEntry{entry})
	return entry, nil
}

// update retries a store update on optimistic conflicts, rerunning the
// callback against a fresh snapshot each time.
func (e *Executor) update(ctx context.Context, fn func(store.Tx) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := e.store.Update(ctx, fn)
		if errors.Is(err, store.ErrConflict) {
			if e.metrics != nil {
				e.metrics.StoreConflicts.Inc()
			}
			continue
		}
		return err
	}
	return ErrTooManyConflicts
}

type heldPosition struct {
	qty int64
	avg int64
}

func readPosition(ctx context.Context, tx store.Tx, accountID, symbol string) (model.Position, heldPosition, error) {
	pos, err := tx.Position(ctx, accountID, symbol)
	if errors.Is(err, store.ErrNotFound) {
		return model.Position{}, heldPosition{}, nil
	}
	if err != nil {
		return model.Position{}, heldPosition{}, err
	}
	return pos, heldPosition{qty: pos.Quantity, avg: pos.AveragePrice}, nil
}

// fundFromCash splits a cost into the cash spent and the credit drawn:
// cash first, credit for the shortfall. Callers check availability before
// applying the draw.
func fundFromCash(cash, cost int64) (cashUse, draw int64) {
	if cash < 0 {
		cash = 0
	}
	cashUse = minInt64(cash, cost)
	return cashUse, cost - cashUse
}

func (e *Executor) position(accountID, symbol, name string, prev model.Position, qty, avg int64, now time.Time) model.Position {
	if name == "" {
		name = prev.Name
	}
	return model.Position{
		AccountID:    accountID,
		Symbol:       symbol,
		Name:         name,
		Quantity:     qty,
		AveragePrice: avg,
		UpdatedAt:    now,
	}
}

type entryOption func(*model.LedgerEntry)

func withCreditUsed(v int64) entryOption     { return func(e *model.LedgerEntry) { e.CreditUsed = v } }
func withCreditReleased(v int64) entryOption { return func(e *model.LedgerEntry) { e.CreditReleased = v } }
func withCreditRepaid(v int64) entryOption   { return func(e *model.LedgerEntry) { e.CreditRepaid = v } }

func (e *Executor) entry(accountID, symbol, name string, typ types.EntryType, price, qty, amount, fee int64, profit *int64, now time.Time, opts ...entryOption) model.LedgerEntry {
	le := model.LedgerEntry{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Symbol:    symbol,
		Name:      name,
		Type:      typ,
		Price:     price,
		Quantity:  qty,
		Amount:    amount,
		Fee:       fee,
		Profit:    profit,
		Timestamp: now,
	}
	for _, opt := range opts {
		opt(&le)
	}
	return le
}

func (e *Executor) append(ctx context.Context, tx store.Tx, entries []model.LedgerEntry) error {
	for _, le := range entries {
		if err := tx.AppendEntry(ctx, le); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) countEntries(entries []model.LedgerEntry) {
	if e.metrics == nil {
		return
	}
	for _, le := range entries {
		e.metrics.EntriesTotal.WithLabelValues(string(le.Type)).Inc()
	}
}

func (e *Executor) reject(reason string, err error) error {
	if e.metrics != nil {
		e.metrics.RejectedTotal.WithLabelValues(reason).Inc()
	}
	return err
}

func (e *Executor) rejectKnown(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return e.reject("funds", err)
	case errors.Is(err, ErrInsufficientShares):
		return e.reject("shares", err)
	case errors.Is(err, ErrInsufficientCredit):
		return e.reject("credit", err)
	case errors.Is(err, ErrAccountNotFound):
		return e.reject("account", err)
	default:
		return err
	}
}

func ptr(v int64) *int64 { return &v }

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

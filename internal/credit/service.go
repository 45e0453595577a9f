// Package credit owns the borrowed-funds lifecycle around the executor:
// daily interest accrual and the forced-sell recovery that restores
// used_credit <= credit_limit after interest pushes an account over.
package credit

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/metrics"
	"lv-paperbroker/internal/pricing"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/types"
)

const (
	dateLayout = "2006-01-02"

	// maxForcedSells bounds one recovery sweep; anything left over is
	// reported as residual excess and picked up by the next run.
	maxForcedSells = 50

	// recentBuyScan bounds the LIFO candidate scan over BUY entries.
	recentBuyScan = 200

	updateAttempts = 5
)

type Service struct {
	store     store.Store
	executor  *engine.Executor
	dailyRate decimal.Decimal
	loc       *time.Location
	metrics   *metrics.Metrics

	// now is swappable in tests.
	now func() time.Time
}

func NewService(st store.Store, exec *engine.Executor, dailyRate decimal.Decimal, loc *time.Location, m *metrics.Metrics) *Service {
	return &Service{
		store:     st,
		executor:  exec,
		dailyRate: dailyRate,
		loc:       loc,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// daysSince counts whole calendar days from a stamped date to today in the
// exchange timezone. Malformed or future stamps count as zero.
func daysSince(stamp, today string) int64 {
	last, err := time.Parse(dateLayout, stamp)
	if err != nil {
		return 0
	}
	cur, err := time.Parse(dateLayout, today)
	if err != nil {
		return 0
	}
	days := int64(cur.Sub(last).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// AccrueInterest charges daily interest on outstanding credit, at most once
// per calendar day per account. A debt-free account still gets its date
// stamped so a later draw is not charged retroactively for the gap.
func (s *Service) AccrueInterest(ctx context.Context, accountID string) error {
	charged := false
	stamped := false
	err := store.UpdateWithRetry(ctx, s.store, updateAttempts, func(tx store.Tx) error {
		charged, stamped = false, false
		acct, err := tx.Account(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return engine.ErrAccountNotFound
			}
			return err
		}
		today := s.today()
		if acct.LastInterestDate == "" {
			acct.LastInterestDate = today
			stamped = true
			return tx.PutAccount(ctx, acct)
		}
		days := daysSince(acct.LastInterestDate, today)
		if days == 0 {
			return nil
		}
		if acct.UsedCredit > 0 {
			interest := pricing.Interest(acct.UsedCredit, s.dailyRate, days)
			acct.UsedCredit += interest
			charged = interest > 0
		}
		acct.LastInterestDate = today
		stamped = true
		return tx.PutAccount(ctx, acct)
	})
	if err != nil {
		return err
	}
	if s.metrics != nil && stamped {
		s.metrics.InterestRuns.Inc()
		if charged {
			s.metrics.InterestCharged.Inc()
		}
	}
	return nil
}

type LiquidationSummary struct {
	ForcedSells    int   `json:"forced_sells"`
	ResidualExcess int64 `json:"residual_excess"`
}

// RecoverFromCreditExcess force-sells long holdings until used credit is
// back within the limit. Two phases share one per-symbol sell primitive:
// first the most recently bought symbols (LIFO over the BUY ledger), then a
// fallback sweep of whatever longs remain. Each sell is its own atomic
// order execution; a failed symbol is logged and skipped, never fatal. The
// routine is safely resumable: completed sells are durable, so a rerun
// starts from a smaller excess.
func (s *Service) RecoverFromCreditExcess(ctx context.Context, accountID string) (LiquidationSummary, error) {
	excess, err := s.currentExcess(ctx, accountID)
	if err != nil {
		return LiquidationSummary{}, err
	}
	if excess <= 0 {
		return LiquidationSummary{}, nil
	}
	if s.metrics != nil {
		s.metrics.RecoveryRuns.Inc()
	}
	log.Printf("credit: account %s over limit by %d, starting liquidation", accountID, excess)

	summary := LiquidationSummary{}

	// Phase 1: newest purchases first, derived from recent BUY entries.
	candidates, err := s.lifoCandidates(ctx, accountID)
	if err != nil {
		return summary, err
	}
	excess, err = s.sweep(ctx, accountID, candidates, excess, &summary)
	if err != nil {
		return summary, err
	}

	// Phase 2: fallback over all remaining longs, for holdings with no
	// matching recent BUY entry.
	if excess > 0 && summary.ForcedSells < maxForcedSells {
		remaining, err := s.longSymbols(ctx, accountID)
		if err != nil {
			return summary, err
		}
		excess, err = s.sweep(ctx, accountID, remaining, excess, &summary)
		if err != nil {
			return summary, err
		}
	}

	if excess > 0 {
		summary.ResidualExcess = excess
		log.Printf("credit: account %s still over limit by %d after %d forced sells", accountID, excess, summary.ForcedSells)
	} else {
		log.Printf("credit: account %s restored within limit after %d forced sells", accountID, summary.ForcedSells)
	}
	return summary, nil
}

func (s *Service) sweep(ctx context.Context, accountID string, symbols []string, excess int64, summary *LiquidationSummary) (int64, error) {
	for _, symbol := range symbols {
		if excess <= 0 || summary.ForcedSells >= maxForcedSells {
			return excess, nil
		}
		sold, err := s.sellForExcess(ctx, accountID, symbol, excess)
		if err != nil {
			log.Printf("credit: skipping %s for account %s: %v", symbol, accountID, err)
			continue
		}
		if !sold {
			continue
		}
		summary.ForcedSells++
		if s.metrics != nil {
			s.metrics.ForcedSells.Inc()
		}
		// Re-read the account rather than trusting the estimate: fees and
		// flooring make the realized repayment differ from the sized one.
		excess, err = s.currentExcess(ctx, accountID)
		if err != nil {
			return excess, err
		}
	}
	return excess, nil
}

// sellForExcess sells just enough of one symbol to cover the excess,
// capped at the held quantity. Returns false when the symbol holds no long
// position or the sized quantity is zero.
func (s *Service) sellForExcess(ctx context.Context, accountID, symbol string, excess int64) (bool, error) {
	var held int64
	err := s.store.View(ctx, func(tx store.Tx) error {
		pos, err := tx.Position(ctx, accountID, symbol)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		held = pos.Quantity
		return nil
	})
	if err != nil {
		return false, err
	}
	if held <= 0 {
		return false, nil
	}
	price, name, err := s.executor.QuotePrice(symbol)
	if err != nil {
		return false, err
	}
	needed := pricing.SharesForExcess(excess, price, s.executor.FeeRate())
	toSell := needed
	if held < toSell {
		toSell = held
	}
	if toSell <= 0 {
		return false, nil
	}
	_, err = s.executor.ExecuteSell(ctx, engine.SellRequest{
		AccountID:  accountID,
		Symbol:     symbol,
		Name:       name,
		Price:      price,
		Quantity:   toSell,
		AllowShort: false, // recovery only unwinds longs
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) currentExcess(ctx context.Context, accountID string) (int64, error) {
	var excess int64
	err := s.store.View(ctx, func(tx store.Tx) error {
		acct, err := tx.Account(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return engine.ErrAccountNotFound
			}
			return err
		}
		excess = acct.UsedCredit - acct.CreditLimit
		return nil
	})
	return excess, err
}

func (s *Service) lifoCandidates(ctx context.Context, accountID string) ([]string, error) {
	var symbols []string
	err := s.store.View(ctx, func(tx store.Tx) error {
		buys, err := tx.RecentEntries(ctx, accountID, types.EntryBuy, recentBuyScan)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(buys))
		for _, e := range buys {
			if !seen[e.Symbol] {
				seen[e.Symbol] = true
				symbols = append(symbols, e.Symbol)
			}
		}
		return nil
	})
	return symbols, err
}

func (s *Service) longSymbols(ctx context.Context, accountID string) ([]string, error) {
	var symbols []string
	err := s.store.View(ctx, func(tx store.Tx) error {
		positions, err := tx.Positions(ctx, accountID)
		if err != nil {
			return err
		}
		for _, p := range positions {
			if p.Quantity > 0 {
				symbols = append(symbols, p.Symbol)
			}
		}
		return nil
	})
	return symbols, err
}

// SetNow pins the clock, for tests.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

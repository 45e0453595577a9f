package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lv-paperbroker/internal/credit"
	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/marketdata"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/store/memstore"
	"lv-paperbroker/internal/types"
)

func newService(t *testing.T) (*Service, *memstore.Store, *engine.Executor, *marketdata.Store) {
	t.Helper()
	st := memstore.New()
	quotes := marketdata.NewStore(marketdata.NewBus())
	exec := engine.NewExecutor(st, quotes, decimal.RequireFromString("0.0005"), decimal.RequireFromString("1350"), nil)
	creditSvc := credit.NewService(st, exec, decimal.RequireFromString("0.001"), time.UTC, nil)
	creditSvc.SetNow(func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) })
	return NewService(st, creditSvc, 500_000_000, 500_000_000), st, exec, quotes
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _, exec, quotes := newService(t)
	ctx := context.Background()

	a, err := svc.Open(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000_000), a.CashBalance)
	assert.Equal(t, int64(500_000_000), a.CreditLimit)
	assert.Equal(t, int64(0), a.UsedCredit)
	assert.Empty(t, a.LastInterestDate)

	// Trade, then reopen: the existing state survives.
	quotes.Set(model.Quote{Symbol: "IT", Name: "IT", Price: 10_000, Currency: "KRW"})
	_, err = exec.ExecuteBuy(ctx, engine.BuyRequest{AccountID: "a1", Symbol: "IT", Name: "IT", Price: 10_000, Quantity: 100})
	require.NoError(t, err)

	again, err := svc.Open(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(499_000_000), again.CashBalance)

	_, err = svc.Open(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidAccountID)
}

func TestGetSettlesInterestAndRecovery(t *testing.T) {
	t.Parallel()

	svc, st, _, quotes := newService(t)
	ctx := context.Background()

	// Over-levered account: one day of interest pushes it past the limit,
	// and the read triggers a forced sell.
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutAccount(ctx, model.Account{
			ID: "a1", CashBalance: 0, CreditLimit: 500_000_000,
			UsedCredit: 499_900_000, LastInterestDate: "2026-08-31",
		}); err != nil {
			return err
		}
		if err := tx.PutPosition(ctx, model.Position{AccountID: "a1", Symbol: "IT", Name: "IT", Quantity: 10_000, AveragePrice: 10_000}); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, model.LedgerEntry{ID: "01AAAA", AccountID: "a1", Symbol: "IT", Type: types.EntryBuy, Price: 10_000, Quantity: 10_000})
	}))
	quotes.Set(model.Quote{Symbol: "IT", Name: "IT", Price: 10_000, Currency: "KRW"})

	a, err := svc.Get(ctx, "a1")
	require.NoError(t, err)
	// interest: floor(499,900,000 * 0.001) = 499,900 -> used 500,399,900
	assert.Equal(t, "2026-09-01", a.LastInterestDate)
	assert.LessOrEqual(t, a.UsedCredit, a.CreditLimit)

	positions, err := svc.Portfolio(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Less(t, positions[0].Quantity, int64(10_000))
}

func TestGetUnknownAccount(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newService(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, engine.ErrAccountNotFound)
}

func TestHistoryFiltersByType(t *testing.T) {
	t.Parallel()

	svc, st, _, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutAccount(ctx, model.Account{ID: "a1"}); err != nil {
			return err
		}
		for _, e := range []model.LedgerEntry{
			{ID: "01A", AccountID: "a1", Type: types.EntryBuy},
			{ID: "01B", AccountID: "a1", Type: types.EntrySell},
			{ID: "01C", AccountID: "a1", Type: types.EntryReward},
		} {
			if err := tx.AppendEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := svc.History(ctx, "a1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "01C", all[0].ID)

	sells, err := svc.History(ctx, "a1", types.EntrySell)
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.Equal(t, "01B", sells[0].ID)
}

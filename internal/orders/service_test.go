package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/marketdata"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/store/memstore"
	"lv-paperbroker/internal/types"
)

func newService(t *testing.T) (*Service, *memstore.Store, *marketdata.Store) {
	t.Helper()
	st := memstore.New()
	quotes := marketdata.NewStore(marketdata.NewBus())
	quotes.Set(model.Quote{Symbol: "IT", Name: "IT", Price: 10_000, Currency: "KRW"})
	ctx := context.Background()
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		return tx.PutAccount(ctx, model.Account{ID: "a1"})
	}))
	return NewService(st, quotes), st, quotes
}

func TestPlaceAndList(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	order, err := svc.Place(ctx, PlaceRequest{AccountID: "a1", Symbol: "IT", Side: types.SideBuy, TargetPrice: 9_500, Quantity: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, types.OrderStatusPending, order.Status)

	orders, err := svc.List(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestPlaceValidation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Place(ctx, PlaceRequest{AccountID: "a1", Symbol: "IT", Side: types.SideBuy, TargetPrice: 0, Quantity: 10})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = svc.Place(ctx, PlaceRequest{AccountID: "a1", Symbol: "IT", Side: "hold", TargetPrice: 9_500, Quantity: 10})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = svc.Place(ctx, PlaceRequest{AccountID: "a1", Symbol: "NOPE", Side: types.SideBuy, TargetPrice: 9_500, Quantity: 10})
	assert.ErrorIs(t, err, marketdata.ErrNoQuote)

	_, err = svc.Place(ctx, PlaceRequest{AccountID: "missing", Symbol: "IT", Side: types.SideBuy, TargetPrice: 9_500, Quantity: 10})
	assert.ErrorIs(t, err, engine.ErrAccountNotFound)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	order, err := svc.Place(ctx, PlaceRequest{AccountID: "a1", Symbol: "IT", Side: types.SideSell, TargetPrice: 11_000, Quantity: 5})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, "a1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, "a1", order.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)

	_, err = svc.Cancel(ctx, "a1", "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Orders are account-scoped.
	_, err = svc.Cancel(ctx, "other", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMarkCompletedAndFailed(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t)
	ctx := context.Background()

	o1, err := svc.Place(ctx, PlaceRequest{AccountID: "a1", Symbol: "IT", Side: types.SideBuy, TargetPrice: 9_500, Quantity: 10})
	require.NoError(t, err)
	o2, err := svc.Place(ctx, PlaceRequest{AccountID: "a1", Symbol: "IT", Side: types.SideBuy, TargetPrice: 9_000, Quantity: 10})
	require.NoError(t, err)

	require.NoError(t, svc.MarkCompleted(ctx, "a1", o1.ID))
	require.NoError(t, svc.MarkFailed(ctx, "a1", o2.ID))

	got1, err := svc.Get(ctx, "a1", o1.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCompleted, got1.Status)

	got2, err := svc.Get(ctx, "a1", o2.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFailed, got2.Status)

	// Terminal states stay terminal.
	assert.ErrorIs(t, svc.MarkCompleted(ctx, "a1", o2.ID), ErrNotPending)
}

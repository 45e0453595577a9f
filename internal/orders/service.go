// Package orders manages resting limit orders. Orders here are pure
// records: creation validates inputs and snapshots a status, and a later
// trigger runs through the executor before the order is marked completed.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/marketdata"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/types"
)

var (
	ErrInvalidOrder   = errors.New("invalid limit order")
	ErrOrderNotFound  = errors.New("limit order not found")
	ErrNotCancellable = errors.New("only pending orders can be cancelled")
	ErrNotPending     = errors.New("order is no longer pending")
)

type Service struct {
	store  store.Store
	quotes *marketdata.Store
	now    func() time.Time
}

func NewService(st store.Store, quotes *marketdata.Store) *Service {
	return &Service{store: st, quotes: quotes, now: time.Now}
}

type PlaceRequest struct {
	AccountID   string     `json:"-"`
	Symbol      string     `json:"symbol"`
	Side        types.Side `json:"side"`
	TargetPrice int64      `json:"target_price"`
	Quantity    int64      `json:"quantity"`
}

func (s *Service) Place(ctx context.Context, req PlaceRequest) (model.LimitOrder, error) {
	if req.Symbol == "" || req.TargetPrice <= 0 || req.Quantity <= 0 {
		return model.LimitOrder{}, ErrInvalidOrder
	}
	if req.Side != types.SideBuy && req.Side != types.SideSell {
		return model.LimitOrder{}, ErrInvalidOrder
	}
	if _, err := s.quotes.Lookup(req.Symbol); err != nil {
		return model.LimitOrder{}, err
	}
	now := s.now().UTC()
	order := model.LimitOrder{
		AccountID:   req.AccountID,
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		TargetPrice: req.TargetPrice,
		Quantity:    req.Quantity,
		Status:      types.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := store.UpdateWithRetry(ctx, s.store, 5, func(tx store.Tx) error {
		if _, err := tx.Account(ctx, req.AccountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return engine.ErrAccountNotFound
			}
			return err
		}
		return tx.PutLimitOrder(ctx, order)
	})
	if err != nil {
		return model.LimitOrder{}, err
	}
	return order, nil
}

// Cancel moves a pending order to CANCELLED. Orders in any terminal state
// stay as they are.
func (s *Service) Cancel(ctx context.Context, accountID, orderID string) (model.LimitOrder, error) {
	var out model.LimitOrder
	err := store.UpdateWithRetry(ctx, s.store, 5, func(tx store.Tx) error {
		order, err := tx.LimitOrder(ctx, accountID, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != types.OrderStatusPending {
			return ErrNotCancellable
		}
		order.Status = types.OrderStatusCancelled
		order.UpdatedAt = s.now().UTC()
		out = order
		return tx.PutLimitOrder(ctx, order)
	})
	if err != nil {
		return model.LimitOrder{}, err
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, accountID string) ([]model.LimitOrder, error) {
	var out []model.LimitOrder
	err := s.store.View(ctx, func(tx store.Tx) error {
		orders, err := tx.LimitOrders(ctx, accountID)
		if err != nil {
			return err
		}
		out = orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, accountID, orderID string) (model.LimitOrder, error) {
	var out model.LimitOrder
	err := s.store.View(ctx, func(tx store.Tx) error {
		order, err := tx.LimitOrder(ctx, accountID, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return model.LimitOrder{}, err
	}
	return out, nil
}

// MarkCompleted and MarkFailed record the outcome of a triggered order.
// The fill itself happens through the executor before either is called.

func (s *Service) MarkCompleted(ctx context.Context, accountID, orderID string) error {
	return s.setStatus(ctx, accountID, orderID, types.OrderStatusCompleted)
}

func (s *Service) MarkFailed(ctx context.Context, accountID, orderID string) error {
	return s.setStatus(ctx, accountID, orderID, types.OrderStatusFailed)
}

func (s *Service) setStatus(ctx context.Context, accountID, orderID string, status types.OrderStatus) error {
	return store.UpdateWithRetry(ctx, s.store, 5, func(tx store.Tx) error {
		order, err := tx.LimitOrder(ctx, accountID, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != types.OrderStatusPending {
			return ErrNotPending
		}
		order.Status = status
		order.UpdatedAt = s.now().UTC()
		return tx.PutLimitOrder(ctx, order)
	})
}

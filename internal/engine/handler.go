package engine

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lv-paperbroker/internal/httputil"
	"lv-paperbroker/internal/marketdata"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/types"
)

type Handler struct {
	exec *Executor
}

func NewHandler(exec *Executor) *Handler {
	return &Handler{exec: exec}
}

type marketOrderRequest struct {
	AccountID string `json:"account_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Quantity  int64  `json:"quantity"`
	// AllowShort only applies to sells; omitted means margin mode.
	AllowShort *bool `json:"allow_short,omitempty"`
}

type marketOrderResponse struct {
	Entries []model.LedgerEntry `json:"entries"`
}

func (h *Handler) MarketOrder(w http.ResponseWriter, r *http.Request) {
	var req marketOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	price, name, err := h.exec.QuotePrice(symbol)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	var entries []model.LedgerEntry
	switch types.Side(req.Side) {
	case types.SideBuy:
		entries, err = h.exec.ExecuteBuy(r.Context(), BuyRequest{
			AccountID: req.AccountID,
			Symbol:    symbol,
			Name:      name,
			Price:     price,
			Quantity:  req.Quantity,
		})
	case types.SideSell:
		allowShort := true
		if req.AllowShort != nil {
			allowShort = *req.AllowShort
		}
		entries, err = h.exec.ExecuteSell(r.Context(), SellRequest{
			AccountID:  req.AccountID,
			Symbol:     symbol,
			Name:       name,
			Price:      price,
			Quantity:   req.Quantity,
			AllowShort: allowShort,
		})
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "side must be buy or sell"})
		return
	}
	if err != nil {
		writeOrderError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, marketOrderResponse{Entries: entries})
}

type rewardRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) GrantReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	entry, err := h.exec.GrantReward(r.Context(), chi.URLParam(r, "accountID"), req.Amount)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidOrder), errors.Is(err, marketdata.ErrNoQuote):
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrInsufficientCredit):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrTooManyConflicts):
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
	}
}

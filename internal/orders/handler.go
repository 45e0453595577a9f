package orders

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/httputil"
	"lv-paperbroker/internal/marketdata"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type placeOrderRequest struct {
	AccountID   string `json:"account_id"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	TargetPrice int64  `json:"target_price"`
	Quantity    int64  `json:"quantity"`
}

func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.AccountID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "account_id is required"})
		return
	}
	order, err := h.svc.Place(r.Context(), PlaceRequest{
		AccountID:   req.AccountID,
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Side:        types.Side(req.Side),
		TargetPrice: req.TargetPrice,
		Quantity:    req.Quantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrAccountNotFound):
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrInvalidOrder), errors.Is(err, marketdata.ErrNoQuote):
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		default:
			httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
		}
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	orderID := chi.URLParam(r, "orderID")
	if accountID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "account_id is required"})
		return
	}
	order, err := h.svc.Cancel(r.Context(), accountID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrNotCancellable):
			httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{Error: err.Error()})
		default:
			httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	orders, err := h.svc.List(r.Context(), accountID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
		return
	}
	if orders == nil {
		orders = []model.LimitOrder{}
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

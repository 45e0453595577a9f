package marketdata

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"lv-paperbroker/internal/httputil"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/pricing"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

type feedQuoteRequest struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

// Feed upserts one quote into the table. This is the ingest path that a
// real feed adapter would call.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	var req feedQuoteRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "symbol is required"})
		return
	}
	if req.Price <= 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "price must be positive"})
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = pricing.HomeCurrency
	}
	q := model.Quote{
		Symbol:    symbol,
		Name:      req.Name,
		Price:     req.Price,
		Currency:  currency,
		UpdatedAt: time.Now().UTC(),
	}
	h.store.Set(q)
	httputil.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.store.All())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, symbol string) {
	q, err := h.store.Lookup(strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, ErrNoQuote) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}

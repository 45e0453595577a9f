package accounts

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/httputil"
	"lv-paperbroker/internal/model"
	"lv-paperbroker/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type openAccountRequest struct {
	AccountID string `json:"account_id"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	acct, err := h.svc.Open(r.Context(), strings.TrimSpace(req.AccountID))
	if err != nil {
		if errors.Is(err, ErrInvalidAccountID) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, acct)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.Get(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeAccountError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.Portfolio(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeAccountError(w, err)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}
	httputil.WriteJSON(w, http.StatusOK, positions)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	typ := types.EntryType(strings.ToUpper(r.URL.Query().Get("type")))
	entries, err := h.svc.History(r.Context(), chi.URLParam(r, "accountID"), typ)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func writeAccountError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrAccountNotFound) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
}

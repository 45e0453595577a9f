package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lv-paperbroker/internal/accounts"
	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/marketdata"
	"lv-paperbroker/internal/orders"
)

type RouterDeps struct {
	AccountsHandler *accounts.Handler
	EngineHandler   *engine.Handler
	OrderHandler    *orders.Handler
	MarketHandler   *marketdata.Handler
	QuoteWSHandler  http.Handler
	Registry        *prometheus.Registry
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", d.AccountsHandler.Open)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/", d.AccountsHandler.Get)
			r.Get("/portfolio", d.AccountsHandler.Portfolio)
			r.Get("/ledger", d.AccountsHandler.History)
			r.Get("/orders", d.OrderHandler.List)
			r.Post("/rewards", d.EngineHandler.GrantReward)
		})

		r.Post("/orders/market", d.EngineHandler.MarketOrder)
		r.Post("/orders/limit", d.OrderHandler.Place)
		r.Delete("/orders/limit/{orderID}", d.OrderHandler.Cancel)

		r.Post("/quotes", d.MarketHandler.Feed)
		r.Get("/quotes", d.MarketHandler.List)
		r.Get("/quotes/{symbol}", func(w http.ResponseWriter, req *http.Request) {
			d.MarketHandler.Get(w, req, chi.URLParam(req, "symbol"))
		})
	})

	r.Get("/ws/quotes", d.QuoteWSHandler.ServeHTTP)

	return r
}

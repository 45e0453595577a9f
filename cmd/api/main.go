package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lv-paperbroker/internal/accounts"
	"lv-paperbroker/internal/config"
	"lv-paperbroker/internal/credit"
	"lv-paperbroker/internal/engine"
	"lv-paperbroker/internal/httpserver"
	"lv-paperbroker/internal/marketdata"
	"lv-paperbroker/internal/metrics"
	"lv-paperbroker/internal/orders"
	"lv-paperbroker/internal/store"
	"lv-paperbroker/internal/store/memstore"
	"lv-paperbroker/internal/store/pgstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	var st store.Store
	if cfg.DBDSN != "" {
		pg, err := pgstore.New(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pg.Close()
		st = pg
		log.Printf("using postgres store")
	} else {
		st = memstore.New()
		log.Printf("using in-memory store")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	bus := marketdata.NewBus()
	quotes := marketdata.NewStore(bus)

	exec := engine.NewExecutor(st, quotes, cfg.FeeRate, cfg.USDKRWRate, m)
	creditSvc := credit.NewService(st, exec, cfg.DailyInterestRate, cfg.MarketTZ, m)
	accountSvc := accounts.NewService(st, creditSvc, cfg.StartingBalance, cfg.CreditLimit)
	orderSvc := orders.NewService(st, quotes)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AccountsHandler: accounts.NewHandler(accountSvc),
		EngineHandler:   engine.NewHandler(exec),
		OrderHandler:    orders.NewHandler(orderSvc),
		MarketHandler:   marketdata.NewHandler(quotes),
		QuoteWSHandler:  httpserver.NewQuoteWSHandler(bus, cfg.WebSocketOrigin),
		Registry:        registry,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Printf("server listening on %s", cfg.HTTPAddr)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

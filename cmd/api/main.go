package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "staybook/internal/adapters/http_server"
	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	stripegw "staybook/internal/adapters/stripe"
	"staybook/internal/app"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	notifier := redisad.NewNotifier(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.NotifyChannel)
	gateway, err := stripegw.New(cfg.StripeKey, cfg.StripeRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Stripe gateway")
	}

	catalog := app.NewCatalogService(repo, cache, cfg.CacheTTL)
	avail := app.NewAvailabilityService(repo, cache, cfg.CacheTTL)
	quotes := app.NewQuoteService(repo)
	payments := app.NewPaymentService(quotes, avail, repo, gateway, notifier, cfg.Currency)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Catalog:  catalog,
		Avail:    avail,
		Quotes:   quotes,
		Payments: payments,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

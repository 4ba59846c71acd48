package main

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	stripegw "staybook/internal/adapters/stripe"
	"staybook/internal/app"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

// Settles invoices stuck in pending: charges the gateway already resolved
// get the normal confirmation transition, the rest are logged for operators.
// Run from cron; each run processes one batch.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Int("workers", cfg.ReconcileWorkers).
		Int("batch", cfg.ReconcileBatch).
		Dur("pending_max_age", cfg.PendingMaxAge).
		Msg("reconciler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	notifier := redisad.NewNotifier(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.NotifyChannel)
	gateway, err := stripegw.New(cfg.StripeKey, cfg.StripeRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Stripe gateway")
	}

	avail := app.NewAvailabilityService(repo, cache, cfg.CacheTTL)
	quotes := app.NewQuoteService(repo)
	payments := app.NewPaymentService(quotes, avail, repo, gateway, notifier, cfg.Currency)

	stale, err := repo.ListPendingOlderThan(ctx, cfg.PendingMaxAge, cfg.ReconcileBatch)
	if err != nil {
		log.Fatal().Err(err).Msg("listing stale pending invoices failed")
	}
	log.Info().Int("count", len(stale)).Msg("stale pending invoices found")

	sem := semaphore.NewWeighted(int64(cfg.ReconcileWorkers))
	var wg sync.WaitGroup

	for _, inv := range stale {
		inv := inv

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(int64(1))

			if err := payments.ReconcilePending(ctx, inv); err != nil {
				log.Warn().Int64("invoice_id", inv.ID).Err(err).Msg("reconcile failed")
				return
			}
			log.Info().Int64("invoice_id", inv.ID).Msg("reconcile ok")
		}()
	}

	wg.Wait()
	log.Info().Msg("reconciliation completed")
}

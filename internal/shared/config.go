package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv           string
	HTTPAddr         string
	MetricsAddr      string
	MySQLDSN         string
	RedisAddr        string
	RedisDB          int
	RedisPass        string
	NotifyChannel    string
	StripeKey        string
	StripeRPS        int
	Currency         string
	CacheTTL         time.Duration
	ReconcileWorkers int
	ReconcileBatch   int
	PendingMaxAge    time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:           env("APP_ENV", "prod"),
		HTTPAddr:         env("HTTP_ADDR", ":8080"),
		MetricsAddr:      env("METRICS_ADDR", ":9100"),
		MySQLDSN:         env("MYSQL_DSN", "root:root@tcp(localhost:3306)/staybook?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:        env("REDIS_ADDR", "localhost:6379"),
		RedisPass:        env("REDIS_PASSWORD", ""),
		RedisDB:          atoi("REDIS_DB", 0),
		NotifyChannel:    env("NOTIFY_CHANNEL", "staybook.events"),
		StripeKey:        env("STRIPE_API_KEY", ""),
		StripeRPS:        atoi("STRIPE_RPS", 5),
		Currency:         env("CURRENCY", "usd"),
		CacheTTL:         time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		ReconcileWorkers: atoi("RECONCILE_WORKERS", 4),
		ReconcileBatch:   atoi("RECONCILE_BATCH", 100),
		PendingMaxAge:    time.Duration(atoi("PENDING_MAX_AGE_MINUTES", 30)) * time.Minute,
	}
	if c.StripeKey == "" {
		log.Warn().Msg("STRIPE_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

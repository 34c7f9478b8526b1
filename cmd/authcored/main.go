// Command authcored serves the authentication core over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bizware/authcore"
	"github.com/bizware/authcore/config"
	"github.com/bizware/authcore/httpapi"
	"github.com/bizware/authcore/metrics/export/prometheus"
	"github.com/bizware/authcore/store/memory"
	"github.com/bizware/authcore/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineCfg := authcore.DefaultConfig()
	engineCfg.Token.AccessSecret = []byte(cfg.AccessTokenSecret)
	engineCfg.Token.AccessTTL = cfg.AccessTTL()
	engineCfg.Token.RefreshTTL = cfg.RefreshTTL()
	engineCfg.Cookie.SigningSecret = []byte(cfg.CookieSecret)
	engineCfg.Cookie.MaxAge = cfg.RefreshTTL()
	engineCfg.Cookie.Secure = cfg.CookieSecure
	engineCfg.Cookie.SameSite = cfg.CookieSameSite

	builder := authcore.New().
		WithConfig(engineCfg).
		WithLogger(logger)

	if cfg.DBURL != "" {
		pool, err := newPostgresPool(ctx, cfg.DBURL)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		builder.
			WithAccountStore(postgres.NewAccountStore(pool)).
			WithRefreshStore(postgres.NewRefreshStore(pool)).
			WithActivityStore(postgres.NewActivityStore(pool))
	} else {
		logger.Warn("DB_URL not set, using in-memory stores")
		builder.
			WithAccountStore(memory.NewAccountStore()).
			WithRefreshStore(memory.NewRefreshStore()).
			WithActivityStore(memory.NewActivityStore())
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		builder.WithRedis(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, rate limits are per-instance only")
	}

	engine, err := builder.Build()
	if err != nil {
		logger.Error("engine build failed", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	httpapi.RegisterRoutes(app, httpapi.NewHandler(engine, logger))
	app.Get("/metrics", adaptor.HTTPHandler(prometheus.NewExporter(engine).Handler()))

	go func() {
		logger.Info("listening", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}

func newPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = time.Hour

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gramorx-entitlements/internal/config"
	"gramorx-entitlements/internal/domain/model"
	"gramorx-entitlements/internal/infra/api"
	pg "gramorx-entitlements/internal/infra/db/postgres"
	"gramorx-entitlements/internal/infra/logging"
	"gramorx-entitlements/internal/infra/metrics"
	red "gramorx-entitlements/internal/infra/redis"
	"gramorx-entitlements/internal/infra/sched"
	"gramorx-entitlements/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	if err := run(*cfgPath, *devMode); err != nil {
		fmt.Fprintf(os.Stderr, "gramorx-entitlements: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, dev bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Config & logging ----
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Catalog ----
	catalog := model.DefaultCatalog()
	if cfg.Catalog.Path != "" {
		if catalog, err = model.LoadCatalog(cfg.Catalog.Path); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	logger.Info().Int("plans", len(catalog.Plans())).Msg("plan catalog loaded")

	// ---- Postgres ----
	if cfg.Database.AutoMigrate {
		if err := pg.RunMigrations(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	promoRepo := pg.NewPromoRepoCacheDecorator(pg.NewPromoRepo(pool), redisClient, cfg.Redis.TTL)
	ledgerRepo := pg.NewXPLedgerRepo(pool)
	profileRepo := pg.NewProfileRepo(pool)

	// ---- Use cases ----
	loc, err := cfg.XP.Location()
	if err != nil {
		return err
	}
	planUC := usecase.NewPlanUseCase(catalog)
	quotaUC := usecase.NewQuotaUseCase(catalog)
	promoUC := usecase.NewPromoUseCase(promoRepo, txm, catalog, logger, time.Now)
	xpUC := usecase.NewXPUseCase(ledgerRepo, profileRepo, txm, usecase.XPOptions{
		DailyCap: cfg.XP.DailyVocabCap,
		Location: loc,
	}, logger)

	// ---- Background ----
	refresher := sched.NewPromoRefresher(cfg.Scheduler.PromoRefreshInterval, promoUC, pool, logger)
	go func() { _ = refresher.Run(ctx) }()

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Plans:   planUC,
		Quotas:  quotaUC,
		Promos:  promoUC,
		XP:      xpUC,
		Auth:    api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Limiter: red.NewRateLimiter(redisClient, cfg.Promo.QuoteRateLimit, cfg.Promo.QuoteRateWindow),
		Metrics: metrics.Handler(),
		Logger:  logger,
	})
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Chain(srv.Router(), api.Timeout(cfg.HTTP.RequestTimeout)),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("version", version).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

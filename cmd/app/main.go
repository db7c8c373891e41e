package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pointsbot/internal/cache"
	"pointsbot/internal/composite"
	"pointsbot/internal/config"
	"pointsbot/internal/httpserver"
	"pointsbot/internal/logging"
	"pointsbot/internal/metrics"
	"pointsbot/internal/migration"
	"pointsbot/internal/store/postgres"
	"pointsbot/internal/store/sqlite"
	"pointsbot/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting pointsbot", "env", cfg.AppEnv,
		"users_mode", cfg.Modes.Users,
		"points_mode", cfg.Modes.Points,
		"sessions_mode", cfg.Modes.Sessions,
		"actions_mode", cfg.Modes.Actions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	legacyStore, err := sqlite.New(ctx, cfg.SQLitePath, logger)
	if err != nil {
		return fmt.Errorf("init sqlite store: %w", err)
	}
	defer legacyStore.Close()

	if err := legacyStore.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	logger.Info("legacy schema ready", "path", cfg.SQLitePath)

	compositeCfg := composite.DefaultConfig()
	legacyRepos := composite.New(legacyStore.Tables(), compositeCfg, logger.With("schema", "v1"), metricRegistry)

	// The v2 repositories are only built when a service needs them; a
	// fully stable deployment runs without a Postgres connection.
	nextRepos := legacyRepos
	var pgStore *postgres.Store
	if cfg.DatabaseURL != "" {
		pgStore, err = postgres.New(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		defer pgStore.Close()

		pgFiles, err := migrations.Postgres()
		if err != nil {
			return fmt.Errorf("load postgres migrations: %w", err)
		}
		if err := pgStore.RunMigrations(ctx, pgFiles); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("new schema ready")

		nextRepos = composite.New(pgStore.Tables(), compositeCfg, logger.With("schema", "v2"), metricRegistry)
	}

	services := migration.Select(cfg.Modes, legacyRepos, nextRepos, logger, metricRegistry)

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()

	var viewCache *cache.UserViews
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed, view cache disabled", "error", err)
	} else {
		viewCache = cache.NewUserViews(redisClient, cfg.CacheTTL)
	}

	server := httpserver.New(cfg.HTTPAddr, logger, metricRegistry, httpserver.Dependencies{
		Services:     services,
		ViewCache:    viewCache,
		WebhookToken: cfg.WebhookToken,
	}, cfg.HTTPBasePath)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := services.Drain(shutdownCtx); err != nil {
		logger.Warn("verifier drain incomplete", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

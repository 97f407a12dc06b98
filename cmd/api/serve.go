package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ecoms/ecoms_account/internal/config"
	"github.com/ecoms/ecoms_account/internal/infra"
	"github.com/ecoms/ecoms_account/internal/logging"
	"github.com/ecoms/ecoms_account/internal/routes"
	"github.com/ecoms/ecoms_account/internal/server"
	"github.com/ecoms/ecoms_account/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg, logging.New(cfg.LogLevel))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.AutoMigrate {
		if err := store.MigrateUp(cfg.DatabaseURL); err != nil {
			logging.LogError(logger, "auto migrate", err)
			return err
		}
		logger.Info("migrations applied")
	}

	deps := routes.Deps{Cfg: cfg, Logger: logger, Registry: newRegistry()}
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			return err
		}
		defer db.Close()
		deps.DB = db
	} else {
		logger.Warn("no database configured, using in-memory stores")
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			logger.Error("connect redis", "error", err)
			return err
		}
		defer closeRedis(cache, logger)
		deps.Cache = cache
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		logger.Error("build server", "error", err)
		return err
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server listening", "address", cfg.Address(), "session_backend", cfg.Session.Backend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server exited cleanly")
	return nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func closeRedis(cache *redis.Client, logger *slog.Logger) {
	if err := cache.Close(); err != nil {
		logger.Warn("close redis", "error", err)
	}
}

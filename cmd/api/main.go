package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/simwallet/internal/config"
	"github.com/congo-pay/simwallet/internal/infra"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/notification"
	"github.com/congo-pay/simwallet/internal/routes"
	"github.com/congo-pay/simwallet/internal/salt"
	"github.com/congo-pay/simwallet/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	notifier := notification.Notifier(notification.NewLoggerNotifier(logger))
	if cache != nil {
		notifier = notification.Multi{notifier, notification.NewRedisNotifier(cache, notification.DefaultChannel)}
	}

	salts := salt.NewManager(routes.NewSaltStore(db), notifier, logger)
	if err := routes.LoadSalts(ctx, salts, cfg.InitialSalt); err != nil {
		logger.Error("load salt", "error", err)
		os.Exit(1)
	}
	if current, err := salts.Current(); err == nil {
		logger.Info("salt loaded", slog.String("fingerprint", current.Fingerprint()))
	} else {
		logger.Warn("salt not initialized, derivations will fail until an administrator sets one")
	}

	if cache != nil {
		go func() {
			err := notification.Subscribe(ctx, cache, notification.DefaultChannel, notification.KindSaltRotated, logger, func(ctx context.Context, _ notification.Message) {
				if err := salts.Refresh(ctx); err != nil {
					logger.Error("refresh salt after rotation", "error", err)
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("salt rotation subscription stopped", "error", err)
			}
		}()
	}

	srv, err := server.New(cfg, db, cache, salts, notifier, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

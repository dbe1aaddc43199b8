package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/congo-pay/simwallet/internal/config"
	"github.com/congo-pay/simwallet/internal/infra"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/notification"
	"github.com/congo-pay/simwallet/internal/routes"
	"github.com/congo-pay/simwallet/internal/salt"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Operator tooling for the SIM wallet service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newSaltCmd(), newDeriveCmd(), newPINCmd())
	return root
}

// env holds the connections a command opened; close releases them.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	salts    *salt.Manager
	closeFns []func()
}

func (e *env) close() {
	for i := len(e.closeFns) - 1; i >= 0; i-- {
		e.closeFns[i]()
	}
}

// openEnv loads configuration and builds a salt manager over Postgres. When
// Redis is configured, rotations are also published so running API instances
// refresh their cached salt.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	e := &env{cfg: cfg, logger: logging.New(cfg.LogLevel)}

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	e.closeFns = append(e.closeFns, db.Close)

	notifier := notification.Notifier(notification.NewLoggerNotifier(e.logger))
	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			e.close()
			return nil, err
		}
		e.closeFns = append(e.closeFns, func() { _ = cache.Close() })
		notifier = notification.Multi{notifier, notification.NewRedisNotifier(cache, notification.DefaultChannel)}
	}

	e.salts = salt.NewManager(routes.NewSaltStore(db), notifier, e.logger)
	if err := e.salts.Load(ctx); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

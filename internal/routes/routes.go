package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/simwallet/internal/alias"
	"github.com/congo-pay/simwallet/internal/auth"
	"github.com/congo-pay/simwallet/internal/config"
	"github.com/congo-pay/simwallet/internal/credential"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/identity"
	"github.com/congo-pay/simwallet/internal/middleware"
	"github.com/congo-pay/simwallet/internal/notification"
	"github.com/congo-pay/simwallet/internal/salt"
	"github.com/congo-pay/simwallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Salts    *salt.Manager
	Notifier notification.Notifier
	// Hasher overrides the PIN hasher; nil means Argon2id defaults.
	Hasher *credential.Hasher
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Salts == nil {
		return errors.New("salt manager is required")
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}
	if d.Hasher == nil {
		d.Hasher = credential.NewHasher(credential.DefaultArgon2Params)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() && d.Cfg.AppEnv != "test" {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	program, err := ProgramAddress(d.Cfg)
	if err != nil {
		return err
	}
	deriver := derive.NewPDADeriver(program, d.Logger)

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc, err := wallet.NewService(walletRepo, deriver, d.Salts, d.Cfg.ResolverCacheSize)
	if err != nil {
		return err
	}

	policy, err := credential.PolicyByName(d.Cfg.PINPolicy)
	if err != nil {
		return err
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo, walletSvc, d.Hasher, policy, d.Cfg.DefaultRegion, d.Logger)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc, walletSvc)

	store, err := aliasStore(d)
	if err != nil {
		return err
	}
	aliases := alias.NewIndex(store, deriver, d.Notifier, d.Logger)

	var idempotent fiber.Handler
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwtmw := middleware.JWTAuth(authSvc)
	adminmw := middleware.AdminAuth(d.Cfg.AdminToken)

	RegisterIdentityRoutes(api, identitySvc, idempotent)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttempts, d.Cfg.DefaultRegion), jwtmw)
	RegisterWalletRoutes(api, walletSvc, identitySvc, jwtmw, adminmw)
	RegisterPINRoutes(api)
	RegisterAliasRoutes(api, aliases, jwtmw, adminmw, idempotent)
	RegisterAdminRoutes(api, d.Salts, adminmw)

	return nil
}

// ProgramAddress returns the configured program id, or the one derived from
// the program name when none is set.
func ProgramAddress(cfg config.Config) (derive.Address, error) {
	if cfg.ProgramID != "" {
		addr, err := derive.ParseAddress(cfg.ProgramID)
		if err != nil {
			return derive.Address{}, fmt.Errorf("PROGRAM_ID: %w", err)
		}
		return addr, nil
	}
	return derive.ProgramFromName(cfg.ProgramName), nil
}

// NewSaltStore picks the Postgres salt store when a pool is available.
func NewSaltStore(db *pgxpool.Pool) salt.Store {
	if db != nil {
		return salt.NewPostgresStore(db)
	}
	return salt.NewMemoryStore()
}

func aliasStore(d Deps) (alias.Store, error) {
	switch d.Cfg.AliasBackend {
	case "redis":
		if d.Cache == nil {
			return nil, errors.New("ALIAS_BACKEND=redis requires REDIS_URL")
		}
		return alias.NewRedisStore(d.Cache), nil
	case "postgres":
		if d.DB != nil {
			return alias.NewPostgresStore(d.DB), nil
		}
		if !d.Cfg.IsDev() {
			return nil, errors.New("ALIAS_BACKEND=postgres requires DATABASE_URL")
		}
		d.Logger.Warn("alias store falling back to memory", slog.String("backend", d.Cfg.AliasBackend))
		return alias.NewMemoryStore(), nil
	default:
		return alias.NewMemoryStore(), nil
	}
}

// optional returns handlers with nil entries removed.
func optional(handlers ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// bootstrapTimeout bounds startup calls made while wiring.
const bootstrapTimeout = 5 * time.Second

// LoadSalts loads the persisted salt and, when the store is empty and initial
// is non-empty, initializes it from the hex value.
func LoadSalts(ctx context.Context, m *salt.Manager, initial string) error {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	if err := m.Load(ctx); err != nil {
		return err
	}
	if _, err := m.Current(); err == nil || initial == "" {
		return nil
	}
	s, err := salt.ParseHex(initial)
	if err != nil {
		return fmt.Errorf("INITIAL_SALT: %w", err)
	}
	err = m.Initialize(ctx, s)
	if errors.Is(err, salt.ErrAlreadyInitialized) {
		// another instance won the bootstrap race
		return m.Refresh(ctx)
	}
	return err
}

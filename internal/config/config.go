package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "SimWallet"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultRegion          = "CG"
	defaultPINPolicy       = "alphanumeric"
	defaultProgramName     = "simwallet"
	defaultAliasBackend    = "postgres"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultCacheSize       = 4096
	defaultLoginAttempts   = 5
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	minSecretLength        = 16
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// DefaultRegion is the ISO 3166-1 alpha-2 region used to parse numbers
	// submitted without a region.
	DefaultRegion string
	// PINPolicy names the credential policy enforced at registration.
	PINPolicy string
	// ProgramID is the base58 program address derivations are rooted at.
	// Empty means derive it from ProgramName.
	ProgramID   string
	ProgramName string
	// AliasBackend selects the reservation store: postgres, redis or memory.
	AliasBackend string
	// InitialSalt is an optional hex salt used to bootstrap an empty store.
	InitialSalt string

	AdminToken        string
	JWTSecret         string
	RefreshSecret     string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	ResolverCacheSize int
	LoginAttempts     int
}

// Load reads configuration values from the environment (and a .env file when
// present) and populates a Config instance.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		DefaultRegion:     strings.ToUpper(getEnv("DEFAULT_REGION", defaultRegion)),
		PINPolicy:         strings.ToLower(getEnv("PIN_POLICY", defaultPINPolicy)),
		ProgramID:         os.Getenv("PROGRAM_ID"),
		ProgramName:       getEnv("PROGRAM_NAME", defaultProgramName),
		AliasBackend:      strings.ToLower(getEnv("ALIAS_BACKEND", defaultAliasBackend)),
		InitialSalt:       os.Getenv("INITIAL_SALT"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RefreshSecret:     os.Getenv("REFRESH_SECRET"),
		AccessTokenTTL:    defaultAccessTTL,
		RefreshTokenTTL:   defaultRefreshTTL,
		ResolverCacheSize: defaultCacheSize,
		LoginAttempts:     defaultLoginAttempts,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = durationFromEnv("", "ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationFromEnv("", "REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.ResolverCacheSize, err = intFromEnv("RESOLVER_CACHE_SIZE", cfg.ResolverCacheSize); err != nil {
		return Config{}, err
	}
	if cfg.LoginAttempts, err = intFromEnv("LOGIN_ATTEMPTS_PER_MINUTE", cfg.LoginAttempts); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if !govalidator.IsISO3166Alpha2(c.DefaultRegion) {
		return fmt.Errorf("DEFAULT_REGION %q is not an ISO 3166-1 alpha-2 code", c.DefaultRegion)
	}
	switch c.AliasBackend {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("ALIAS_BACKEND must be postgres, redis or memory, got %q", c.AliasBackend)
	}
	if c.ResolverCacheSize <= 0 {
		return fmt.Errorf("RESOLVER_CACHE_SIZE must be positive")
	}

	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if len(c.JWTSecret) < minSecretLength || len(c.RefreshSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be at least %d characters", minSecretLength)
	}
	if len(c.AdminToken) < minSecretLength {
		return fmt.Errorf("ADMIN_TOKEN must be at least %d characters", minSecretLength)
	}
	return nil
}

// IsDev reports whether the app runs in a development environment, where
// Postgres and Redis are optional and in-memory stores are used instead.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session backends.
const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
	SessionBackendMemory   = "memory"
)

const (
	defaultAppName        = "ecoms-account"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultSessionTTL     = 24 * time.Hour
	defaultBcryptCost     = 10
	defaultDBMaxConns     = 10
	defaultRedisPoolSize  = 10
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
	DBMaxConns     int32
	RedisPoolSize  int
	AutoMigrate    bool
	BcryptCost     int
	Session        SessionConfig
}

// SessionConfig controls the session store and its cookie.
type SessionConfig struct {
	Backend        string
	TTL            time.Duration
	Sliding        bool
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:     getEnv("APP_NAME", defaultAppName),
		AppEnv:      getEnv("APP_ENV", defaultAppEnv),
		Port:        getEnv("PORT", defaultPort),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Session: SessionConfig{
			Backend:        strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendPostgres)),
			CookieName:     os.Getenv("SESSION_COOKIE_NAME"),
			CookieDomain:   os.Getenv("SESSION_COOKIE_DOMAIN"),
			CookieSameSite: strings.ToLower(getEnv("SESSION_COOKIE_SAMESITE", "lax")),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.Session.TTL, err = getDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.Session.Sliding, err = getBool("SESSION_SLIDING", false); err != nil {
		return Config{}, err
	}
	if cfg.Session.CookieSecure, err = getBool("SESSION_COOKIE_SECURE", true); err != nil {
		return Config{}, err
	}
	if cfg.AutoMigrate, err = getBool("AUTO_MIGRATE", false); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", defaultBcryptCost); err != nil {
		return Config{}, err
	}
	maxConns, err := getInt("DB_MAX_CONNS", defaultDBMaxConns)
	if err != nil {
		return Config{}, err
	}
	cfg.DBMaxConns = int32(maxConns)
	if cfg.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", defaultRedisPoolSize); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks cross-field rules. Only development may run without a
// database, on in-memory stores.
func (c Config) validate() error {
	if c.DatabaseURL == "" && !c.IsDev() {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.DatabaseURL == "" && c.AutoMigrate {
		return fmt.Errorf("AUTO_MIGRATE requires DATABASE_URL")
	}
	switch c.Session.Backend {
	case SessionBackendPostgres, SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.BcryptCost < defaultBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be at least %d", defaultBcryptCost)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.RedisPoolSize <= 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must be positive")
	}
	if c.Session.CookieSameSite == "none" && !c.Session.CookieSecure {
		return fmt.Errorf("SESSION_COOKIE_SAMESITE=none requires SESSION_COOKIE_SECURE=true")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDuration reads key+"_SECONDS" as whole seconds, falling back to key as
// a Go duration string.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	secondsKey := key + "_SECONDS"
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
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

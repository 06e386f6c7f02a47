package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/joho/godotenv"
)

// Store driver names accepted by AUTHGATE_USER_STORE and AUTHGATE_SESSION_STORE.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired session purge interval (default: 1h)

	UserStore    string // Credential store driver: sqlite, postgres, memory (default: sqlite)
	SessionStore string // Session store driver: memory, sqlite, postgres, redis (default: memory)
	DatabaseFile string // SQLite database path (default: authgate.db)
	PostgresDSN  string // Required when either store is postgres
	RedisURL     string // Required when the session store is redis

	// Secrets are read from base64url env values when set, otherwise from
	// files that are generated on first start.
	TokenKey           string
	TokenKeyFile       string // default: secrets/token.key
	CookieHashKey      string
	CookieHashKeyFile  string // default: secrets/cookie_hash.key
	CookieBlockKey     string
	CookieBlockKeyFile string // default: secrets/cookie_block.key
	Pepper             string
	PepperFile         string // default: secrets/pepper

	PasswordScheme string // argon2id or bcrypt (default: argon2id)
	BcryptCost     int    // Only used by bcrypt (default: library default)

	Issuer   string        // iss claim (default: authgate)
	TokenTTL time.Duration // Access token lifetime (default: 30m)

	SessionLogin       domain.LoginMode // password or trust (default: password)
	SessionLifetime    time.Duration    // Absolute session lifetime (default: 12h)
	SessionIdleTimeout time.Duration    // Idle timeout, negative disables (default: 30m)
	CookieName         string           // default: session_id
	CookieSecure       bool             // Secure attribute (default: true outside dev)
	CookieSameSite     string           // lax, strict, none (default: lax)

	SeedFile string // YAML users applied to an empty credential store (default: configs/users.yaml)

	// now overrides the clock used by token and session services.
	now func() time.Time
}

// LoadConfig reads the configuration from the environment, after loading a
// .env file from the working directory when one exists.
func LoadConfig() Config {
	loadEnvFile()

	env := getEnvOrDefault("ENV", "dev")
	secrets := getEnvOrDefault("AUTHGATE_SECRETS_DIR", "secrets")

	cfg := Config{
		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		UserStore:    getEnvOrDefault("AUTHGATE_USER_STORE", DriverSQLite),
		SessionStore: getEnvOrDefault("AUTHGATE_SESSION_STORE", DriverMemory),
		DatabaseFile: getEnvOrDefault("AUTHGATE_DATABASE_FILE", "authgate.db"),
		PostgresDSN:  os.Getenv("AUTHGATE_POSTGRES_DSN"),
		RedisURL:     os.Getenv("AUTHGATE_REDIS_URL"),

		TokenKey:           os.Getenv("AUTHGATE_TOKEN_KEY"),
		TokenKeyFile:       getEnvOrDefault("AUTHGATE_TOKEN_KEY_FILE", filepath.Join(secrets, "token.key")),
		CookieHashKey:      os.Getenv("AUTHGATE_COOKIE_HASH_KEY"),
		CookieHashKeyFile:  getEnvOrDefault("AUTHGATE_COOKIE_HASH_KEY_FILE", filepath.Join(secrets, "cookie_hash.key")),
		CookieBlockKey:     os.Getenv("AUTHGATE_COOKIE_BLOCK_KEY"),
		CookieBlockKeyFile: getEnvOrDefault("AUTHGATE_COOKIE_BLOCK_KEY_FILE", filepath.Join(secrets, "cookie_block.key")),
		Pepper:             os.Getenv("AUTHGATE_PEPPER"),
		PepperFile:         getEnvOrDefault("AUTHGATE_PEPPER_FILE", filepath.Join(secrets, "pepper")),

		PasswordScheme: getEnvOrDefault("AUTHGATE_PASSWORD_SCHEME", string(cryptox.SchemeArgon2id)),
		BcryptCost:     getEnvIntOrDefault("AUTHGATE_BCRYPT_COST", 0),

		Issuer:   getEnvOrDefault("AUTHGATE_ISSUER", "authgate"),
		TokenTTL: getEnvDurationOrDefault("AUTHGATE_TOKEN_TTL", 30*time.Minute),

		SessionLogin:       domain.LoginMode(getEnvOrDefault("AUTHGATE_SESSION_LOGIN", string(domain.LoginPassword))),
		SessionLifetime:    getEnvDurationOrDefault("AUTHGATE_SESSION_LIFETIME", 12*time.Hour),
		SessionIdleTimeout: getEnvDurationOrDefault("AUTHGATE_SESSION_IDLE_TIMEOUT", 30*time.Minute),
		CookieName:         getEnvOrDefault("AUTHGATE_COOKIE_NAME", "session_id"),
		CookieSecure:       getEnvBoolOrDefault("AUTHGATE_COOKIE_SECURE", env != "dev"),
		CookieSameSite:     getEnvOrDefault("AUTHGATE_COOKIE_SAMESITE", "lax"),

		SeedFile: getEnvOrDefault("AUTHGATE_SEED_FILE", filepath.Join("configs", "users.yaml")),
	}

	return cfg
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	switch c.UserStore {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("AUTHGATE_USER_STORE: unsupported driver %q", c.UserStore)
	}
	switch c.SessionStore {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("AUTHGATE_SESSION_STORE: unsupported driver %q", c.SessionStore)
	}

	if (c.UserStore == DriverPostgres || c.SessionStore == DriverPostgres) && c.PostgresDSN == "" {
		return errors.New("AUTHGATE_POSTGRES_DSN is required for the postgres driver")
	}
	if c.SessionStore == DriverRedis && c.RedisURL == "" {
		return errors.New("AUTHGATE_REDIS_URL is required for the redis driver")
	}
	if (c.UserStore == DriverSQLite || c.SessionStore == DriverSQLite) && c.DatabaseFile == "" {
		return errors.New("AUTHGATE_DATABASE_FILE is required for the sqlite driver")
	}

	switch cryptox.Scheme(c.PasswordScheme) {
	case cryptox.SchemeArgon2id, cryptox.SchemeBcrypt:
	default:
		return fmt.Errorf("AUTHGATE_PASSWORD_SCHEME: unsupported scheme %q", c.PasswordScheme)
	}

	if c.TokenTTL <= 0 {
		return errors.New("AUTHGATE_TOKEN_TTL must be positive")
	}
	if c.SessionLifetime <= 0 {
		return errors.New("AUTHGATE_SESSION_LIFETIME must be positive")
	}

	switch c.SessionLogin {
	case domain.LoginPassword:
	case domain.LoginTrust:
		if c.Env == "prod" {
			return errors.New("AUTHGATE_SESSION_LOGIN=trust is not allowed when ENV=prod")
		}
	default:
		return fmt.Errorf("AUTHGATE_SESSION_LOGIN: unsupported mode %q", c.SessionLogin)
	}

	if c.CookieName == "" {
		return errors.New("AUTHGATE_COOKIE_NAME must not be empty")
	}
	sameSite, err := parseSameSite(c.CookieSameSite)
	if err != nil {
		return err
	}
	if sameSite == http.SameSiteNoneMode && !c.CookieSecure {
		return errors.New("AUTHGATE_COOKIE_SAMESITE=none requires AUTHGATE_COOKIE_SECURE=true")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("AUTHGATE_COOKIE_SAMESITE: unsupported value %q", v)
	}
}

func loadEnvFile() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	// Variables already present in the environment win.
	_ = godotenv.Load(".env")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

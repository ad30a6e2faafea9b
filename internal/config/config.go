package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/domain"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Throttle backends.
const (
	ThrottleMemory = "memory"
	ThrottleRedis  = "redis"
	ThrottleOff    = "off"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Throttle ThrottleConfig
	Metrics  MetricsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Backend       string
	RunMigrations bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the sqlite database location.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret         string
	JWTSecretFile     string
	JWTKeyID          string
	AccessTokenTTL    time.Duration
	Roles             string
	PasswordAlgorithm string
	BcryptCost        int
	StoreTimeout      time.Duration
	AllowRegistration bool
	CookieName        string
	CookieSecure      bool

	BootstrapAdminIdentity string
	BootstrapAdminPassword string

	// RecognizedRoles is Roles parsed by Validate.
	RecognizedRoles domain.RoleSet
}

// ThrottleConfig bounds login attempts per client.
type ThrottleConfig struct {
	Backend  string
	Attempts int
	Window   time.Duration
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Port      string
}

// Load reads configuration from environment variables, applying defaults where possible,
// and validates it. A returned error means the process must not start.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:                  env.GetString("APP_NAME", "authguard"),
			Env:                   env.GetString("APP_ENV", "development"),
			Host:                  env.GetString("APP_HOST", "0.0.0.0"),
			Port:                  env.GetString("APP_PORT", "8080"),
			Version:               env.GetString("APP_VERSION", "dev"),
			RequestTimeoutSeconds: env.GetInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(env.GetString("CREDENTIAL_STORE", StoreMemory)),
			RunMigrations: env.GetBool("DB_RUN_MIGRATIONS", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(env.GetInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(env.GetInt("POSTGRES_MIN_CONNS", 2)),
			ConnMaxIdleSec: int32(env.GetInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(env.GetInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		SQLite: SQLiteConfig{
			Path: env.GetString("SQLITE_PATH", "./data/authguard.db"),
		},
		Redis: RedisConfig{
			Addr:     env.GetString("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       env.GetInt("REDIS_DB", 0),
		},
		Logger: LoggerConfig{
			Level: env.GetString("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              os.Getenv("AUTH_JWT_SECRET"),
			JWTSecretFile:          os.Getenv("AUTH_JWT_SECRET_FILE"),
			JWTKeyID:               os.Getenv("AUTH_JWT_KEY_ID"),
			AccessTokenTTL:         env.GetDuration("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60, time.Minute),
			Roles:                  env.GetString("AUTH_ROLES", "admin,manager,user"),
			PasswordAlgorithm:      strings.ToLower(env.GetString("AUTH_PASSWORD_ALGORITHM", auth.AlgorithmBcrypt)),
			BcryptCost:             env.GetInt("AUTH_BCRYPT_COST", 12),
			StoreTimeout:           env.GetDuration("AUTH_STORE_TIMEOUT_SECONDS", 3, time.Second),
			AllowRegistration:      env.GetBool("AUTH_ALLOW_REGISTRATION", true),
			CookieName:             os.Getenv("AUTH_COOKIE_NAME"),
			CookieSecure:           env.GetBool("AUTH_COOKIE_SECURE", true),
			BootstrapAdminIdentity: os.Getenv("AUTH_BOOTSTRAP_ADMIN_IDENTITY"),
			BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Throttle: ThrottleConfig{
			Backend:  strings.ToLower(env.GetString("THROTTLE_BACKEND", ThrottleMemory)),
			Attempts: env.GetInt("THROTTLE_LOGIN_ATTEMPTS", 10),
			Window:   env.GetDuration("THROTTLE_LOGIN_WINDOW_SECONDS", 60, time.Second),
		},
		Metrics: MetricsConfig{
			Enabled:   env.GetBool("METRICS_ENABLED", true),
			Namespace: env.GetString("METRICS_NAMESPACE", "authguard"),
			Port:      env.GetString("METRICS_PORT", "9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting the service cannot safely run without.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Auth.ResolveSecret(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.StoreTimeout <= 0 {
		errs = append(errs, errors.New("AUTH_STORE_TIMEOUT_SECONDS must be positive"))
	}

	roles, err := domain.ParseRoleSet(c.Auth.Roles)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid AUTH_ROLES: %w", err))
	} else {
		c.Auth.RecognizedRoles = roles
	}

	switch c.Auth.PasswordAlgorithm {
	case auth.AlgorithmBcrypt:
		if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
			errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
		}
	case auth.AlgorithmArgon2id:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PASSWORD_ALGORITHM %q", c.Auth.PasswordAlgorithm))
	}

	if (c.Auth.BootstrapAdminIdentity == "") != (c.Auth.BootstrapAdminPassword == "") {
		errs = append(errs, errors.New("AUTH_BOOTSTRAP_ADMIN_IDENTITY and AUTH_BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when CREDENTIAL_STORE=postgres"))
		}
	case StoreSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when CREDENTIAL_STORE=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CREDENTIAL_STORE %q", c.Store.Backend))
	}

	switch c.Throttle.Backend {
	case ThrottleMemory, ThrottleRedis:
		if c.Throttle.Attempts <= 0 || c.Throttle.Window <= 0 {
			errs = append(errs, errors.New("THROTTLE_LOGIN_ATTEMPTS and THROTTLE_LOGIN_WINDOW_SECONDS must be positive"))
		}
	case ThrottleOff:
	default:
		errs = append(errs, fmt.Errorf("unknown THROTTLE_BACKEND %q", c.Throttle.Backend))
	}

	return errors.Join(errs...)
}

// ResolveSecret returns the signing secret from AUTH_JWT_SECRET_FILE when set, otherwise from
// AUTH_JWT_SECRET. The secret is validated on every call so a rotated file is checked too.
func (a AuthConfig) ResolveSecret() (string, error) {
	secret := a.JWTSecret
	if a.JWTSecretFile != "" {
		raw, err := os.ReadFile(a.JWTSecretFile)
		if err != nil {
			return "", fmt.Errorf("read AUTH_JWT_SECRET_FILE: %w", err)
		}
		secret = strings.TrimSpace(string(raw))
	}
	if err := auth.ValidateSecret(secret); err != nil {
		return "", fmt.Errorf("signing secret: %w", err)
	}
	return secret, nil
}

// SigningKey resolves the secret and pairs it with the configured key id.
func (a AuthConfig) SigningKey() (auth.SigningKey, error) {
	secret, err := a.ResolveSecret()
	if err != nil {
		return auth.SigningKey{}, err
	}
	return auth.NewSigningKey(a.JWTKeyID, []byte(secret)), nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the metrics bind address on the same host as the API.
func (m MetricsConfig) Addr(host string) string {
	return fmt.Sprintf("%s:%s", host, m.Port)
}

// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"session-auth/backend/internal/identity/service"
)

// Session store backends selectable via SESSION_STORE.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Password hash algorithms selectable via PASSWORD_HASH.
const (
	PasswordHashBcrypt   = "bcrypt"
	PasswordHashArgon2id = "argon2id"
)

// minSecretLen is the minimum byte length for each JWT signing secret.
const minSecretLen = 32

// Config holds application configuration loaded from the environment.
// It is built once at startup and passed by value or pointer; nothing mutates it afterwards.
type Config struct {
	// HTTPAddr is the address the HTTP auth API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Required for the user store and for SESSION_STORE=postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis URL (redis://host:port/db). Required when SESSION_STORE=redis.
	RedisURL string `mapstructure:"REDIS_URL"`
	// SessionStore selects the session backend: postgres, redis, or memory (single instance only).
	SessionStore string `mapstructure:"SESSION_STORE"`

	// JWTAccessSecret signs access tokens. Inline value or "file:<path>".
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens. Must differ from JWTAccessSecret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim set on and required from every token.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim set on and required from every token.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AccessTTL is the access token lifetime (e.g. "24h", or "10s" in a tightened posture).
	AccessTTL time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	// RefreshTTL is the refresh token lifetime; the session's absolute expiry still bounds it.
	RefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`
	// SessionTTL is the absolute session lifetime from creation. Refresh never extends it.
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	// SessionRetention is how long an expired session is kept so late refreshes report expiry rather than not-found.
	SessionRetention time.Duration `mapstructure:"SESSION_RETENTION"`
	// ReusePolicy decides what happens on detected refresh token reuse: token, session, or user.
	ReusePolicy service.ReusePolicy `mapstructure:"REUSE_POLICY"`

	// PasswordHash is the algorithm for new hashes (bcrypt or argon2id). Verification accepts both.
	PasswordHash string `mapstructure:"PASSWORD_HASH"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PasswordHashConcurrency bounds concurrent password hash computations.
	PasswordHashConcurrency int `mapstructure:"PASSWORD_HASH_CONCURRENCY"`

	// LoginRatePerSecond and LoginRateBurst configure the per-IP token bucket on POST /auth/login.
	LoginRatePerSecond float64 `mapstructure:"LOGIN_RATE_PER_SECOND"`
	LoginRateBurst     int     `mapstructure:"LOGIN_RATE_BURST"`
	// TrustProxy makes the client IP come from X-Forwarded-For / X-Real-IP. Enable it only
	// behind a proxy that overwrites those headers; otherwise clients pick their own IP.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`

	// SweepInterval is how often the worker purges sessions past expiry + retention.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Env is the application environment (e.g. "development", "production").
	// SESSION_STORE=memory is rejected when Env is production.
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_STORE", StorePostgres)
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "session-auth")
	v.SetDefault("JWT_AUDIENCE", "session-api")
	v.SetDefault("JWT_ACCESS_TTL", "24h")
	v.SetDefault("JWT_REFRESH_TTL", "8760h") // 1y, bounded by SESSION_TTL in practice
	v.SetDefault("SESSION_TTL", "168h")      // 7d
	v.SetDefault("SESSION_RETENTION", "24h")
	v.SetDefault("REUSE_POLICY", string(service.ReuseRevokeSession))
	v.SetDefault("PASSWORD_HASH", PasswordHashBcrypt)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_HASH_CONCURRENCY", 4)
	v.SetDefault("LOGIN_RATE_PER_SECOND", 5)
	v.SetDefault("LOGIN_RATE_BURST", 10)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("SWEEP_INTERVAL", "10m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "session-auth")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	cfg.ReusePolicy = service.ReusePolicy(strings.ToLower(strings.TrimSpace(string(cfg.ReusePolicy))))
	cfg.PasswordHash = strings.ToLower(strings.TrimSpace(cfg.PasswordHash))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross-field rules. Load calls it; tests may call it directly.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}

	switch c.SessionStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when SESSION_STORE=postgres")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when SESSION_STORE=redis")
		}
	case StoreMemory:
		if c.Env == "production" {
			return errors.New("config: SESSION_STORE=memory must not be used when APP_ENV=production")
		}
	default:
		return fmt.Errorf("config: SESSION_STORE must be postgres, redis, or memory, got %q", c.SessionStore)
	}

	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if !strings.HasPrefix(c.JWTAccessSecret, "file:") && len(c.JWTAccessSecret) < minSecretLen {
		return fmt.Errorf("config: JWT_ACCESS_SECRET must be at least %d bytes", minSecretLen)
	}
	if !strings.HasPrefix(c.JWTRefreshSecret, "file:") && len(c.JWTRefreshSecret) < minSecretLen {
		return fmt.Errorf("config: JWT_REFRESH_SECRET must be at least %d bytes", minSecretLen)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("config: JWT_ACCESS_TTL, JWT_REFRESH_TTL and SESSION_TTL must be positive")
	}
	if c.AccessTTL > c.RefreshTTL {
		return errors.New("config: JWT_ACCESS_TTL must not exceed JWT_REFRESH_TTL")
	}
	if c.SessionRetention < 0 {
		return errors.New("config: SESSION_RETENTION must not be negative")
	}

	if _, err := service.ParseReusePolicy(string(c.ReusePolicy)); err != nil {
		return fmt.Errorf("config: REUSE_POLICY must be token, session, or user: %w", err)
	}

	switch c.PasswordHash {
	case PasswordHashBcrypt, PasswordHashArgon2id:
	default:
		return fmt.Errorf("config: PASSWORD_HASH must be bcrypt or argon2id, got %q", c.PasswordHash)
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.PasswordHashConcurrency <= 0 {
		c.PasswordHashConcurrency = 1
	}
	if c.LoginRatePerSecond <= 0 || c.LoginRateBurst <= 0 {
		return errors.New("config: LOGIN_RATE_PER_SECOND and LOGIN_RATE_BURST must be positive")
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Minute
	}
	return nil
}

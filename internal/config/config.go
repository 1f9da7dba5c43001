package config

import (
	"fmt"
	"time"

	"github.com/KavyaGunapati/TypeFromProject/internal/auth"
	pkgconfig "github.com/KavyaGunapati/TypeFromProject/pkg/config"
	"github.com/KavyaGunapati/TypeFromProject/pkg/database"
	"github.com/KavyaGunapati/TypeFromProject/pkg/middleware"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// minProductionKeyLength is the shortest HS256 key accepted outside development.
const minProductionKeyLength = 32

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"identity"`
	PostgresPass     string        `env:"POSTGRES_PASSWORD" envDefault:"identity_secret"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"identity"`
	PostgresSSL      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	PostgresMinConns int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	SlowQuery        time.Duration `env:"POSTGRES_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis role cache; an empty host disables it.
	RedisHost     string        `env:"REDIS_HOST"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RoleCacheTTL  time.Duration `env:"ROLE_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// JWT
	JWTKey                string `env:"JWT_KEY"`
	JWTIssuer             string `env:"JWT_ISSUER" envDefault:"identity-service"`
	JWTAudience           string `env:"JWT_AUDIENCE" envDefault:"identity-clients"`
	JWTAccessTokenMinutes int    `env:"JWT_ACCESS_TOKEN_MINUTES" envDefault:"15"`
	JWTRefreshTokenDays   int    `env:"JWT_REFRESH_TOKEN_DAYS" envDefault:"14"`

	// Per-IP throttling of signup, login and refresh; zero RPS disables it.
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads an optional .env file and then configuration from environment
// variables.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	switch cfg.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: want %q or %q", cfg.StorageDriver, StoragePostgres, StorageMemory)
	}

	// The signing key has no default anywhere. Outside development it must
	// also be long enough for HS256.
	if cfg.JWTKey == "" {
		return nil, fmt.Errorf("%w: JWT_KEY must be set", auth.ErrConfigurationMissing)
	}
	if !cfg.IsDevelopment() && len(cfg.JWTKey) < minProductionKeyLength {
		return nil, fmt.Errorf("JWT_KEY must be at least %d characters long, got %d", minProductionKeyLength, len(cfg.JWTKey))
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SigningConfig builds the immutable signing settings shared by the token
// issuer and the session service.
func (c *Config) SigningConfig() (auth.SigningConfig, error) {
	return auth.NewSigningConfig(c.JWTKey, c.JWTIssuer, c.JWTAudience, c.JWTAccessTokenMinutes, c.JWTRefreshTokenDays)
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.PostgresMaxConns
	pg.MinConns = c.PostgresMinConns
	return pg
}

// Redis returns the role cache connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// AuthRateLimit returns the throttle applied to the credential endpoints.
func (c *Config) AuthRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RPS:   c.AuthRateLimitRPS,
		Burst: c.AuthRateLimitBurst,
	}
}

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Database DatabaseConfig `env:",prefix=DB_"`
	App      AppConfig      `env:",prefix=APP_"`
	Tracking TrackingConfig `env:",prefix=TRACKING_"`
	Jobs     JobsConfig     `env:",prefix=JOBS_"`
	Push     PushConfig     `env:",prefix=PUSH_"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string `env:"HOST,default=0.0.0.0"`
	Port         string `env:"PORT,default=8080"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=0"`  // seconds, 0 keeps SSE streams open
	IdleTimeout  int    `env:"IDLE_TIMEOUT,default=120"` // seconds
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string `env:"DRIVER,default=postgres"` // postgres or sqlite
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=giveaway"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	Path     string `env:"PATH,default=giveaway.db"` // sqlite only
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Environment  string   `env:"ENVIRONMENT,default=development"`
	LogLevel     string   `env:"LOG_LEVEL,default=info"`
	JWTSecret    string   `env:"JWT_SECRET"`
	PublicOrigin string   `env:"PUBLIC_ORIGIN,default=http://localhost:8080"`
	CORSOrigins  []string `env:"CORS_ORIGINS,default=http://localhost:5173"`
}

// TrackingConfig holds referral link tracking settings
type TrackingConfig struct {
	UniqueVisitorWindow time.Duration `env:"UNIQUE_VISITOR_WINDOW,default=24h"`
	ClickRateLimit      float64       `env:"CLICK_RATE_LIMIT,default=5"` // requests per second per IP
	ClickBurst          int           `env:"CLICK_BURST,default=20"`
}

// JobsConfig holds background job intervals
type JobsConfig struct {
	CloserInterval    time.Duration `env:"CLOSER_INTERVAL,default=1m"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,default=10m"`
}

// PushConfig holds push gateway settings
type PushConfig struct {
	Endpoint string        `env:"ENDPOINT"`
	APIKey   string        `env:"API_KEY"`
	Timeout  time.Duration `env:"TIMEOUT,default=10s"`
}

// Load loads configuration from a .env file (if present) and environment variables
func Load(ctx context.Context) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom processes configuration from the given lookuper
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and enumerations
func (c *Config) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("APP_JWT_SECRET is required")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Tracking.UniqueVisitorWindow <= 0 {
		return fmt.Errorf("TRACKING_UNIQUE_VISITOR_WINDOW must be positive")
	}

	c.App.PublicOrigin = strings.TrimRight(c.App.PublicOrigin, "/")
	return nil
}

// GetDSN returns the connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	DB        DBConfig
	Cache     CacheConfig
	Auth      AuthConfig
	S3        S3Config
	Admin     AdminConfig
	Log       LogConfig
	Gate      GateConfig
	RateLimit RateLimitConfig
}

// AppConfig holds HTTP server and runtime settings
type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"prod"`
	Host     string `envconfig:"APP_HOST" default:"localhost"`
	Port     int    `envconfig:"APP_PORT" default:"4000"`
	Store    string `envconfig:"APP_STORE" default:"mysql"`
	BasePath string `envconfig:"APP_BASE_PATH" default:"."`
}

// DBConfig holds database configuration
type DBConfig struct {
	Host        string `envconfig:"DB_HOST" default:"127.0.0.1"`
	Port        int    `envconfig:"DB_PORT" default:"3306"`
	User        string `envconfig:"DB_USER" default:"clippass"`
	Password    string `envconfig:"DB_PASSWORD"`
	Name        string `envconfig:"DB_NAME" default:"clippass"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"10"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// CacheConfig holds the Redis/Dragonfly connection used for derived data
type CacheConfig struct {
	Enabled  bool   `envconfig:"CACHE_ENABLED" default:"true"`
	Host     string `envconfig:"CACHE_HOST" default:"localhost"`
	Port     int    `envconfig:"CACHE_PORT" default:"6379"`
	Password string `envconfig:"CACHE_PASSWORD"`
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTSecret string        `envconfig:"AUTH_JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
}

// S3Config holds settings for resolving s3:// video references
type S3Config struct {
	Enabled         bool          `envconfig:"S3_ENABLED" default:"false"`
	Region          string        `envconfig:"S3_REGION" default:"us-east-1"`
	AccessKeyID     string        `envconfig:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `envconfig:"S3_SECRET_ACCESS_KEY"`
	EndpointURL     string        `envconfig:"S3_ENDPOINT_URL"`
	PresignTTL      time.Duration `envconfig:"S3_PRESIGN_TTL" default:"15m"`
}

// AdminConfig holds basic auth credentials for /admin and /metrics
type AdminConfig struct {
	User     string `envconfig:"ADMIN_USER" default:"admin"`
	Password string `envconfig:"ADMIN_PASSWORD"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// GateConfig tunes the licensed-publisher cache of the access gate
type GateConfig struct {
	CacheTTL time.Duration `envconfig:"GATE_CACHE_TTL" default:"30s"`
}

type RateLimitConfig struct {
	Max    int           `envconfig:"RATE_LIMIT_MAX" default:"120"`
	Window time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DSN returns the MySQL data source name used by GORM
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// MigrateURL returns the database URL understood by golang-migrate
func (c *DBConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Addr returns host:port of the cache server
func (c *CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Listen returns the address the HTTP server binds to
func (c *AppConfig) Listen() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *AppConfig) IsDev() bool {
	return c.Env == "dev"
}

// AdminEnabled reports whether the admin surface should be mounted
func (c *AdminConfig) AdminEnabled() bool {
	return c.User != "" && c.Password != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.App); err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}
	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Cache); err != nil {
		return nil, fmt.Errorf("failed to load cache config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}
	if err := envconfig.Process("", &cfg.S3); err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Admin); err != nil {
		return nil, fmt.Errorf("failed to load admin config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to load log config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Gate); err != nil {
		return nil, fmt.Errorf("failed to load gate config: %w", err)
	}
	if err := envconfig.Process("", &cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("failed to load rate limit config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT must be between 1 and 65535")
	}
	if c.App.Store != StoreMySQL && c.App.Store != StoreMemory {
		return fmt.Errorf("APP_STORE must be %q or %q", StoreMySQL, StoreMemory)
	}
	if c.App.Store == StoreMySQL && c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}
	if c.S3.Enabled && (c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3 is enabled")
	}
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.Gate.CacheTTL < 0 {
		return fmt.Errorf("GATE_CACHE_TTL must not be negative")
	}
	return nil
}

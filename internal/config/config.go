package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	App           AppConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
	SafeBrowsing  SafeBrowsingConfig
	Geo           GeoConfig
	Tracking      TrackingConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`
	CORSOrigin      string        `envconfig:"SERVER_CORS_ORIGIN" default:"*"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute, got %q", c.BaseURL)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" required:"true"`
	Port        string `envconfig:"DB_PORT" required:"true"`
	User        string `envconfig:"DB_USER" required:"true"`
	Password    string `envconfig:"DB_PASSWORD" required:"true"`
	Name        string `envconfig:"DB_NAME" required:"true"`
	SSLMode     string `envconfig:"DB_SSLMODE" required:"true"`
	MaxConns    int32  `envconfig:"DB_MAX_CONNS" required:"true"`
	MinConns    int32  `envconfig:"DB_MIN_CONNS" required:"true"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection as a postgres:// URL, the form the migrator accepts.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// ObservabilityConfig controls the Prometheus endpoint.
type ObservabilityConfig struct {
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsPath    string `envconfig:"METRICS_PATH" default:"/metrics"`
	ServiceName    string `envconfig:"SERVICE_NAME" default:"linkshield"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if c.MetricsEnabled && (c.MetricsPath == "" || c.MetricsPath[0] != '/') {
		return fmt.Errorf("metrics path must start with '/', got %q", c.MetricsPath)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	return nil
}

// AuthConfig holds the HS256 secret used to verify owner bearer tokens.
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	return nil
}

// SafeBrowsingConfig configures the URL classifier. An empty API key runs the
// service with every URL treated as safe.
type SafeBrowsingConfig struct {
	APIKey        string        `envconfig:"SAFE_BROWSING_API_KEY"`
	URL           string        `envconfig:"SAFE_BROWSING_URL" default:"https://safebrowsing.googleapis.com/v4/threatMatches:find"`
	Timeout       time.Duration `envconfig:"SAFE_BROWSING_TIMEOUT" default:"5s"`
	CacheTTL      time.Duration `envconfig:"SAFETY_CACHE_TTL" default:"24h"`
	ClientID      string        `envconfig:"SAFE_BROWSING_CLIENT_ID" default:"linkshield-pro"`
	ClientVersion string        `envconfig:"SAFE_BROWSING_CLIENT_VERSION" default:"1.0.0"`
	Concurrency   int           `envconfig:"SAFE_BROWSING_CONCURRENCY" default:"8"`
}

// Validate validates the safe browsing configuration.
func (c *SafeBrowsingConfig) Validate() error {
	if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("safe browsing URL must be absolute, got %q", c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("safe browsing timeout must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("safety cache TTL must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("safe browsing concurrency must be positive")
	}
	return nil
}

// GeoConfig configures IP geolocation.
type GeoConfig struct {
	BaseURL string        `envconfig:"GEO_BASE_URL" default:"http://ip-api.com/json"`
	Timeout time.Duration `envconfig:"GEO_TIMEOUT" default:"5s"`
}

// Validate validates the geo configuration.
func (c *GeoConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("geo base URL cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("geo timeout must be positive")
	}
	return nil
}

// TrackingConfig holds click tracking and anonymous link policy.
type TrackingConfig struct {
	Mode               string        `envconfig:"TRACKING_MODE" default:"inline"` // inline, async
	Workers            int           `envconfig:"TRACKING_WORKERS" default:"4"`
	QueueSize          int           `envconfig:"TRACKING_QUEUE_SIZE" default:"1024"`
	Timeout            time.Duration `envconfig:"TRACKING_TIMEOUT" default:"5s"`
	AnonClickThreshold int           `envconfig:"ANON_CLICK_THRESHOLD" default:"3"`
	AnonLinkLimit      int           `envconfig:"ANON_LINK_LIMIT" default:"3"`
	AnonWindow         time.Duration `envconfig:"ANON_WINDOW" default:"24h"`
	AnonLinkTTL        time.Duration `envconfig:"ANON_LINK_TTL" default:"168h"`
}

// Validate validates the tracking configuration.
func (c *TrackingConfig) Validate() error {
	if c.Mode != "inline" && c.Mode != "async" {
		return fmt.Errorf("invalid tracking mode: %s (must be one of: inline, async)", c.Mode)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("tracking workers must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("tracking queue size must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("tracking timeout must be positive")
	}
	if c.AnonClickThreshold <= 0 {
		return fmt.Errorf("anonymous click threshold must be positive")
	}
	if c.AnonLinkLimit <= 0 {
		return fmt.Errorf("anonymous link limit must be positive")
	}
	if c.AnonWindow <= 0 {
		return fmt.Errorf("anonymous window must be positive")
	}
	if c.AnonLinkTTL <= 0 {
		return fmt.Errorf("anonymous link TTL must be positive")
	}
	return nil
}

// RedisConfig configures the unique-visitor store. An empty address falls
// back to Postgres.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("redis DB must not be negative")
	}
	if c.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Addr); err != nil {
			return fmt.Errorf("invalid redis address %q: %w", c.Addr, err)
		}
	}
	return nil
}

// RateLimitConfig bounds link creation per client IP.
type RateLimitConfig struct {
	Create int           `envconfig:"RATE_LIMIT_CREATE" default:"20"`
	Window time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if c.Create <= 0 {
		return fmt.Errorf("create rate limit must be positive")
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}

type section interface {
	Validate() error
}

// Load loads configuration from environment variables only.
// .env files are loaded by internal/app before this runs.
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name string
		dst  section
	}{
		{"Server", &cfg.Server},
		{"Database", &cfg.Database},
		{"App", &cfg.App},
		{"Observability", &cfg.Observability},
		{"Auth", &cfg.Auth},
		{"SafeBrowsing", &cfg.SafeBrowsing},
		{"Geo", &cfg.Geo},
		{"Tracking", &cfg.Tracking},
		{"Redis", &cfg.Redis},
		{"RateLimit", &cfg.RateLimit},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.dst); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.dst.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}

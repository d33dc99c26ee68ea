package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cpath/config.yaml",
}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	JWT       JWTConfig       `koanf:"jwt"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Path      PathConfig      `koanf:"path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	DBName          string        `koanf:"name"`
	SSLMode         string        `koanf:"sslmode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// JWTConfig holds access token verification settings. Tokens are issued by
// the identity service; this service only verifies them.
type JWTConfig struct {
	SecretKey string `koanf:"secret"`
	Issuer    string `koanf:"issuer"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled         bool   `koanf:"enabled"`
	ServiceName     string `koanf:"service_name"`
	ServiceVersion  string `koanf:"service_version"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	MetricsEndpoint string `koanf:"metrics_endpoint"`
}

// CacheConfig holds the redis cache settings
type CacheConfig struct {
	Enabled    bool   `koanf:"enabled"`
	RedisURL   string `koanf:"redis_url"`
	TTLSeconds int    `koanf:"ttl_seconds"`
}

// TTL returns the cache entry lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	Enabled           bool    `koanf:"enabled"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// PathConfig holds path generation settings
type PathConfig struct {
	DefaultSize int   `koanf:"default_size"`
	MaxSize     int   `koanf:"max_size"`
	RatingStep  int   `koanf:"rating_step"`
	MinRating   int   `koanf:"min_rating"`
	MaxRating   int   `koanf:"max_rating"`
	RandomSeed  int64 `koanf:"random_seed"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			DBName:          "cp_path_builder",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		JWT: JWTConfig{
			SecretKey: "your-super-secret-key-change-in-production",
			Issuer:    "cp-path-builder",
		},
		Telemetry: TelemetryConfig{
			Enabled:         true,
			ServiceName:     "cp-path-builder-api",
			ServiceVersion:  "1.0.0",
			OTLPEndpoint:    "http://otel-collector:4318",
			MetricsEndpoint: "/metrics",
		},
		Cache: CacheConfig{
			Enabled:    true,
			RedisURL:   "redis://localhost:6379/0",
			TTLSeconds: 3600,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Path: PathConfig{
			DefaultSize: 30,
			MaxSize:     100,
			RatingStep:  100,
			MinRating:   800,
			MaxRating:   3500,
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and environment variables,
// in increasing priority, then validates the result
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings keeps the flat environment names working against the nested layout
var envMappings = map[string]string{
	"server_host":             "server.host",
	"server_port":             "server.port",
	"server_read_timeout":     "server.read_timeout",
	"server_write_timeout":    "server.write_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",
	"environment":             "server.environment",
	"cors_allowed_origins":    "server.allowed_origins",

	"db_host":              "database.host",
	"db_port":              "database.port",
	"db_user":              "database.user",
	"db_password":          "database.password",
	"db_name":              "database.name",
	"db_ssl_mode":          "database.sslmode",
	"db_max_open_conns":    "database.max_open_conns",
	"db_max_idle_conns":    "database.max_idle_conns",
	"db_conn_max_lifetime": "database.conn_max_lifetime",

	"jwt_secret": "jwt.secret",
	"jwt_issuer": "jwt.issuer",

	"telemetry_enabled":           "telemetry.enabled",
	"service_name":                "telemetry.service_name",
	"service_version":             "telemetry.service_version",
	"otel_exporter_otlp_endpoint": "telemetry.otlp_endpoint",
	"metrics_endpoint":            "telemetry.metrics_endpoint",

	"cache_enabled":     "cache.enabled",
	"redis_url":         "cache.redis_url",
	"cache_ttl_seconds": "cache.ttl_seconds",

	"rate_limit_enabled": "rate_limit.enabled",
	"rate_limit_rps":     "rate_limit.requests_per_second",
	"rate_limit_burst":   "rate_limit.burst",

	"default_path_size": "path.default_size",
	"max_path_size":     "path.max_size",
	"path_rating_step":  "path.rating_step",
	"path_min_rating":   "path.min_rating",
	"path_max_rating":   "path.max_rating",
	"path_random_seed":  "path.random_seed",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var sliceConfigPaths = []string{
	"server.allowed_origins",
}

// splitSliceFields turns comma separated env values into slices
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.IsProduction() && c.JWT.SecretKey == defaultConfig().JWT.SecretKey {
		errs = append(errs, errors.New("jwt.secret must be changed in production"))
	}
	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("cache.redis_url is required when the cache is enabled"))
	}
	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, errors.New("cache.ttl_seconds must not be negative"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("rate_limit needs a positive requests_per_second and burst"))
	}

	p := c.Path
	if p.RatingStep <= 0 {
		errs = append(errs, fmt.Errorf("path.rating_step must be positive, got %d", p.RatingStep))
	}
	if p.MinRating > p.MaxRating {
		errs = append(errs, fmt.Errorf("path.min_rating %d exceeds path.max_rating %d", p.MinRating, p.MaxRating))
	}
	if p.DefaultSize < 1 || p.DefaultSize > p.MaxSize {
		errs = append(errs, fmt.Errorf("path.default_size must be between 1 and path.max_size (%d)", p.MaxSize))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Addr returns the host:port the HTTP server listens on
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

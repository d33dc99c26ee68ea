package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 100, cfg.Path.RatingStep)
	assert.Equal(t, 30, cfg.Path.DefaultSize)
	assert.Equal(t, 100, cfg.Path.MaxSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL())
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=cp_path_builder sslmode=disable", cfg.Database.DSN())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
  read_timeout: 5s
path:
  rating_step: 200
  random_seed: 42
cache:
  redis_url: redis://cache:6379/1
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CACHE_TTL_SECONDS", "60")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 200, cfg.Path.RatingStep)
	assert.Equal(t, int64(42), cfg.Path.RandomSeed)
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
	assert.Equal(t, time.Minute, cfg.Cache.TTL())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PATH_RATING_STEP", "0")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "path.rating_step")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"inverted ratings", func(c *Config) { c.Path.MinRating = 2000; c.Path.MaxRating = 1000 }, "path.min_rating"},
		{"default size above max", func(c *Config) { c.Path.DefaultSize = 150 }, "path.default_size"},
		{"cache without url", func(c *Config) { c.Cache.RedisURL = "" }, "cache.redis_url"},
		{"cache disabled without url", func(c *Config) { c.Cache.Enabled = false; c.Cache.RedisURL = "" }, ""},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, "rate_limit"},
		{"default secret in production", func(c *Config) { c.Server.Environment = "production" }, "jwt.secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

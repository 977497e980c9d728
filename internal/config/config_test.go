package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "JWT_SECRET", "JWT_EXPIRATION", "AI_SERVICE_URL", "PYTHON_BACKEND_URL", "PROXY_TIMEOUT", "STORAGE_DRIVER", "NATS_URL", "CORS_ALLOWED_ORIGINS", "ENV"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "5000", cfg.ServerPort)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "http://localhost:5001", cfg.AIServiceURL)
	assert.Equal(t, 30*time.Second, cfg.ProxyTimeout)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.Development())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRATION", "1h")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("AI_SERVICE_URL", "")
	t.Setenv("PYTHON_BACKEND_URL", "http://ai:5001")
	t.Setenv("PROXY_TIMEOUT", "5s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, http://localhost:3000,")
	t.Setenv("ENV", "development")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.JWTExpiration)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "http://ai:5001", cfg.AIServiceURL)
	assert.Equal(t, 5*time.Second, cfg.ProxyTimeout)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 20, cfg.RateLimitRequests)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.Development())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWTSecret:     "k",
			AIServiceURL:  "http://localhost:5001",
			ProxyTimeout:  time.Second,
			StorageDriver: "memory",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"missing ai url", func(c *Config) { c.AIServiceURL = "" }},
		{"zero timeout", func(c *Config) { c.ProxyTimeout = 0 }},
		{"unknown driver", func(c *Config) { c.StorageDriver = "mongo" }},
		{"sqlite without dsn", func(c *Config) { c.StorageDriver = "sqlite3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("defaults pass in development", func(t *testing.T) {
		require.NoError(t, defaultConfig().validate())
	})

	t.Run("idle connections cannot exceed open connections", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns + 1
		assert.Error(t, cfg.validate())
	})

	t.Run("production requires secrets", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.App.Env = "production"
		assert.Error(t, cfg.validate(), "missing jwt secret")

		cfg.JWT.Secret = "production-secret-with-32-chars-min!"
		assert.Error(t, cfg.validate(), "missing database password")

		cfg.Database.Password = "hunter2"
		assert.Error(t, cfg.validate(), "sslmode disable is rejected")

		cfg.Database.SSLMode = "require"
		require.NoError(t, cfg.validate())
	})

	t.Run("production stripe key needs a webhook secret", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.App.Env = "production"
		cfg.JWT.Secret = "production-secret-with-32-chars-min!"
		cfg.Database.Password = "hunter2"
		cfg.Database.SSLMode = "require"
		cfg.Stripe.SecretKey = "sk_live_x"
		assert.Error(t, cfg.validate())

		cfg.Stripe.WebhookSecret = "whsec_x"
		require.NoError(t, cfg.validate())
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "finbooks",
		Password: "p@ss/word#1",
		DBName:   "finbooks",
		SSLMode:  "require",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// Special characters in credentials must be escaped
	assert.NotContains(t, dsn, "p@ss/word#1")
}

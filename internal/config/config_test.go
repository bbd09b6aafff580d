package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("CRM_API_BASE_URL", "https://crm.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "https://crm.example.com", cfg.Client.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)

	assert.Equal(t, 3, cfg.Reconcile.MaxRetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Reconcile.RetryDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Reconcile.SkipDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconcile.SettleDelay)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=d sslmode=disable", c.DSN())
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("CRM_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnvOrDefault("CRM_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("CRM_TEST_MISSING", "fallback"))
}

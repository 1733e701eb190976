package config

import (
	"testing"
	"time"

	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "sandbox", cfg.Pi.Network)
	assert.Equal(t, 0.05, cfg.Settlement.CommissionRate)
	assert.Equal(t, 5*time.Minute, cfg.Settlement.WalletRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Settlement.PayoutLockTTL)
	assert.Equal(t, 5*time.Second, cfg.Worker.RetryPollInterval)
	assert.Equal(t, "settlement-workers", cfg.Worker.ConsumerGroup)
	assert.Equal(t, "http://localhost:8081", cfg.Marketplace.BaseURL)
	assert.Equal(t, "settlement-1", cfg.InstanceID)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SETTLEMENT_SERVER_PORT", "9090")
	t.Setenv("SETTLEMENT_SETTLEMENT_COMMISSION_RATE", "0.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.1, cfg.Settlement.CommissionRate)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database.host",
		},
		{
			name:    "bad network",
			mutate:  func(c *Config) { c.Pi.Network = "testnet" },
			wantErr: "pi.network",
		},
		{
			name:    "commission out of range",
			mutate:  func(c *Config) { c.Settlement.CommissionRate = 1.0 },
			wantErr: "commission_rate",
		},
		{
			name:    "negative commission",
			mutate:  func(c *Config) { c.Settlement.CommissionRate = -0.1 },
			wantErr: "commission_rate",
		},
		{
			name:    "zero wallet retry delay",
			mutate:  func(c *Config) { c.Settlement.WalletRetryDelay = 0 },
			wantErr: "wallet_retry_delay",
		},
		{
			name:    "zero lock ttl",
			mutate:  func(c *Config) { c.Settlement.PayoutLockTTL = 0 },
			wantErr: "payout_lock_ttl",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Worker.BatchSize = 0 },
			wantErr: "worker.batch_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProduction(t *testing.T) {
	cfg := validConfig(t)
	t.Setenv("ENV", "production")

	err := cfg.Validate()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "database.password required in production")
	assert.Contains(t, err.Error(), "auth.jwt_secret required in production")
	assert.Contains(t, err.Error(), "pi.api_key required in production")
	assert.Contains(t, err.Error(), "pi.webhook_secret required in production")
	assert.Contains(t, err.Error(), "pi.network must be mainnet in production")
}

func TestValidateProductionComplete(t *testing.T) {
	cfg := validConfig(t)
	t.Setenv("ENV", "production")

	cfg.Database.Password = "secret"
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Pi.APIKey = "pi-api-key"
	cfg.Pi.WebhookSecret = "webhook-secret"
	cfg.Pi.Network = "mainnet"

	assert.NoError(t, cfg.Validate())
}

func TestBaseOrNetworkURL(t *testing.T) {
	cfg := PiConfig{Network: "sandbox"}
	assert.Equal(t, pinet.SandboxURL, cfg.BaseOrNetworkURL())

	cfg.Network = "mainnet"
	assert.Equal(t, pinet.MainnetURL, cfg.BaseOrNetworkURL())

	cfg.BaseURL = "http://localhost:9999"
	assert.Equal(t, "http://localhost:9999", cfg.BaseOrNetworkURL())
}

func TestConnectionStrings(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "settlement", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=settlement sslmode=disable", db.DatabaseDSN())

	r := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", r.RedisAddr())
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cassiomorais/settlement/internal/infrastructure/pinet"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Pi            PiConfig            `mapstructure:"pi"`
	Marketplace   MarketplaceConfig   `mapstructure:"marketplace"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// PiConfig configures access to the Pi platform API and the custodial wallet.
type PiConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Network selects the platform environment: "mainnet" or "sandbox".
	Network string `mapstructure:"network"`
	// BaseURL overrides the network-derived endpoint when set.
	BaseURL          string `mapstructure:"base_url"`
	WebhookSecret    string `mapstructure:"webhook_secret"`
	CustodialAddress string `mapstructure:"custodial_address"`
}

// BaseOrNetworkURL returns the explicit base URL if configured, otherwise the
// endpoint for the selected network.
func (c *PiConfig) BaseOrNetworkURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Network == "sandbox" {
		return pinet.SandboxURL
	}
	return pinet.MainnetURL
}

// MarketplaceConfig points at the marketplace collaborator service that owns
// orders, stores, profiles and inventory.
type MarketplaceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SettlementConfig tunes the payout pipeline.
type SettlementConfig struct {
	// CommissionRate is the fraction of a released payout withheld by the
	// marketplace, e.g. 0.05 for 5 percent.
	CommissionRate float64 `mapstructure:"commission_rate"`
	// WalletRetryDelay is how long a payout waits after a wallet-linkage gap
	// before running again.
	WalletRetryDelay time.Duration `mapstructure:"wallet_retry_delay"`
	PayoutLockTTL    time.Duration `mapstructure:"payout_lock_ttl"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

type WorkerConfig struct {
	BatchSize         int64         `mapstructure:"batch_size"`
	BlockDuration     time.Duration `mapstructure:"block_duration"`
	RetryPollInterval time.Duration `mapstructure:"retry_poll_interval"`
	ConsumerGroup     string        `mapstructure:"consumer_group"`
	IdempotencyTTL    time.Duration `mapstructure:"idempotency_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("SETTLEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/settlement")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Pi.Network != "mainnet" && c.Pi.Network != "sandbox" {
		errs = append(errs, fmt.Errorf("pi.network must be mainnet or sandbox, got %q", c.Pi.Network))
	}
	if c.Settlement.CommissionRate < 0 || c.Settlement.CommissionRate >= 1 {
		errs = append(errs, fmt.Errorf("settlement.commission_rate must be in [0, 1), got %v", c.Settlement.CommissionRate))
	}
	if c.Settlement.WalletRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("settlement.wallet_retry_delay must be positive"))
	}
	if c.Settlement.PayoutLockTTL <= 0 {
		errs = append(errs, fmt.Errorf("settlement.payout_lock_ttl must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if c.Pi.APIKey == "" {
			errs = append(errs, fmt.Errorf("pi.api_key required in production"))
		}
		if c.Pi.WebhookSecret == "" {
			errs = append(errs, fmt.Errorf("pi.webhook_secret required in production"))
		}
		if c.Pi.Network == "sandbox" {
			errs = append(errs, fmt.Errorf("pi.network must be mainnet in production"))
		}
	}

	// JWT secret length validation
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "settlement")
	v.SetDefault("database.database", "settlement")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Pi platform defaults
	v.SetDefault("pi.network", "sandbox")

	// Marketplace defaults
	v.SetDefault("marketplace.base_url", "http://localhost:8081")
	v.SetDefault("marketplace.timeout", "10s")

	// Settlement defaults
	v.SetDefault("settlement.commission_rate", 0.05)
	v.SetDefault("settlement.wallet_retry_delay", "5m")
	v.SetDefault("settlement.payout_lock_ttl", "30s")
	v.SetDefault("settlement.max_retries", 3)
	v.SetDefault("settlement.retry_delay", "1s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.retry_poll_interval", "5s")
	v.SetDefault("worker.consumer_group", "settlement-workers")
	v.SetDefault("worker.idempotency_ttl", "24h")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Auth defaults
	v.SetDefault("auth.jwt_expiry", "24h")

	// Instance ID
	v.SetDefault("instance_id", "settlement-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

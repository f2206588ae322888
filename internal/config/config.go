package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/hazelmarket/checkout/pkg/config"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"hazelmarket"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"hazelmarket_secret"`
	PostgresDB   string `env:"CHECKOUT_DB_NAME" envDefault:"checkout_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis, used for settlement recovery records
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Collaborator service URLs
	CartServiceURL      string `env:"CART_SERVICE_URL" envDefault:"http://localhost:8002"`
	CatalogServiceURL   string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8001"`
	InventoryServiceURL string `env:"INVENTORY_SERVICE_URL" envDefault:"http://localhost:8007"`
	RatesServiceURL     string `env:"RATES_SERVICE_URL" envDefault:"http://localhost:8008"`
	GatewayServiceURL   string `env:"GATEWAY_SERVICE_URL" envDefault:"http://localhost:8005"`
	CommerceServiceURL  string `env:"COMMERCE_SERVICE_URL" envDefault:"http://localhost:8003"`

	// Circuit breaker settings for downstream service calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Per-step timeouts (seconds). Each confirmation step gets its own
	// context.WithTimeout so a slow downstream cannot hold the checkout
	// open indefinitely.
	StockTimeout  int `env:"STEP_STOCK_TIMEOUT" envDefault:"5"`
	RatesTimeout  int `env:"STEP_RATES_TIMEOUT" envDefault:"5"`
	IntentTimeout int `env:"STEP_INTENT_TIMEOUT" envDefault:"10"`
	CommitTimeout int `env:"STEP_COMMIT_TIMEOUT" envDefault:"10"`

	// Checkout policy
	MinOrderPolicy         string   `env:"MIN_ORDER_POLICY" envDefault:"advise"`
	MinOrderAmount         int64    `env:"MIN_ORDER_AMOUNT" envDefault:"1000"`
	DeferredPaymentMethods []string `env:"DEFERRED_PAYMENT_METHODS" envDefault:"cod,bank_transfer" envSeparator:","`
	RecoveryTTLMins        int      `env:"SETTLEMENT_RECOVERY_TTL_MINUTES" envDefault:"60"`
	DraftSweepIntervalMins int      `env:"DRAFT_SWEEP_INTERVAL_MINUTES" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	switch c.MinOrderPolicy {
	case "disabled", "advise", "block":
	default:
		return fmt.Errorf("invalid MIN_ORDER_POLICY %q: must be disabled, advise or block", c.MinOrderPolicy)
	}
	if c.MinOrderAmount < 0 {
		return fmt.Errorf("MIN_ORDER_AMOUNT must not be negative, got %d", c.MinOrderAmount)
	}
	if c.RecoveryTTLMins < 1 {
		return fmt.Errorf("SETTLEMENT_RECOVERY_TTL_MINUTES must be at least 1, got %d", c.RecoveryTTLMins)
	}
	for name, rawURL := range map[string]string{
		"CART_SERVICE_URL":      c.CartServiceURL,
		"CATALOG_SERVICE_URL":   c.CatalogServiceURL,
		"INVENTORY_SERVICE_URL": c.InventoryServiceURL,
		"RATES_SERVICE_URL":     c.RatesServiceURL,
		"GATEWAY_SERVICE_URL":   c.GatewayServiceURL,
		"COMMERCE_SERVICE_URL":  c.CommerceServiceURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RecoveryTTL returns the settlement recovery record lifetime.
func (c *Config) RecoveryTTL() time.Duration {
	return time.Duration(c.RecoveryTTLMins) * time.Minute
}

package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/winestore/pkg/config"
)

// Cart stores.
const (
	CartStoreRedis  = "redis"
	CartStoreMemory = "memory"
)

// Config holds all configuration for the storefront.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort              int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	RequestTimeoutSeconds int `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Upstream APIs
	ProductAPIURL            string `env:"PRODUCT_API_URL" envDefault:"http://localhost:3000"`
	OrderAPIURL              string `env:"ORDER_API_URL" envDefault:"http://localhost:3001"`
	HTTPClientTimeoutSeconds int    `env:"HTTP_CLIENT_TIMEOUT_SECONDS" envDefault:"10"`
	HTTPClientMaxRetries     int    `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"2"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart persistence. CART_TTL_HOURS=0 keeps carts until cleared.
	CartStore string `env:"CART_STORE" envDefault:"redis"`
	CartTTL   int    `env:"CART_TTL_HOURS" envDefault:"720"`

	// Catalog
	CatalogCacheTTLSeconds int    `env:"CATALOG_CACHE_TTL_SECONDS" envDefault:"60"`
	CatalogMaxAgeSeconds   int    `env:"CATALOG_MAX_AGE_SECONDS" envDefault:"60"`
	DefaultLocale          string `env:"DEFAULT_LOCALE" envDefault:"pt"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Circuit breaker settings for upstream calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Visitor session cookie
	SessionCookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"storefront_session"`
	SessionCookieSecure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
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
	for name, rawURL := range map[string]string{
		"PRODUCT_API_URL": c.ProductAPIURL,
		"ORDER_API_URL":   c.OrderAPIURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	switch c.CartStore {
	case CartStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CART_STORE=redis")
		}
	case CartStoreMemory:
	default:
		return fmt.Errorf("CART_STORE must be %q or %q, got %q", CartStoreRedis, CartStoreMemory, c.CartStore)
	}
	if c.CartTTL < 0 {
		return fmt.Errorf("CART_TTL_HOURS must not be negative, got %d", c.CartTTL)
	}
	if c.CatalogCacheTTLSeconds < 0 {
		return fmt.Errorf("CATALOG_CACHE_TTL_SECONDS must not be negative, got %d", c.CatalogCacheTTLSeconds)
	}
	if c.DefaultLocale == "" {
		return fmt.Errorf("DEFAULT_LOCALE is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid PPROF_ALLOWED_CIDRS entry %q: %w", cidr, err)
		}
	}
	return nil
}

// CartTTLDuration returns how long an idle cart is kept. Zero means forever.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// CatalogCacheTTL returns the catalog cache lifetime. Zero disables caching.
func (c *Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLSeconds) * time.Second
}

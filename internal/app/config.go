package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/luxethreads/promotions/internal/domain/money"
	"github.com/luxethreads/promotions/internal/domain/order"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (LUXE_ prefix), a .env file, flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (LUXE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Redis        RedisConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	Sweeper      SweeperConfig
	Graceful     GracefulConfig
}

// RedisConfig controls the coupon lookup cache. The cache is disabled when
// neither URL nor Addr is set.
type RedisConfig struct {
	URL      string        `usage:"Redis URL (LUXE_REDIS_URL or REDIS_URL), overrides addr"`
	Addr     string        `default:"" usage:"Redis host:port"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	TTL      time.Duration `default:"5m" usage:"Coupon cache entry lifetime"`
}

// Enabled reports whether a Redis endpoint is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != "" || c.Addr != ""
}

// Options builds go-redis client options.
func (c RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

// CheckoutConfig prices shipping and tax on top of item prices.
type CheckoutConfig struct {
	Currency    string `default:"USD" usage:"Store currency (ISO 4217)"`
	ShippingFee string `default:"9.99" usage:"Flat shipping fee per order" flag:"shipping-fee"`
	TaxRate     string `default:"0.08" usage:"Tax rate as a fraction of the discounted subtotal" flag:"tax-rate"`
}

// Pricing parses the checkout settings.
func (c CheckoutConfig) Pricing() (order.Pricing, error) {
	currency, err := money.NormalizeCurrency(c.Currency)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "checkout currency")
	}
	fee, err := decimal.NewFromString(c.ShippingFee)
	if err != nil || fee.IsNegative() {
		return order.Pricing{}, errors.Errorf("invalid shipping fee %q", c.ShippingFee)
	}
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return order.Pricing{}, errors.Errorf("invalid tax rate %q", c.TaxRate)
	}
	return order.Pricing{Currency: currency, ShippingFee: fee, TaxRate: rate}, nil
}

// RateLimitConfig controls the per-client token bucket on the coupon apply
// endpoint.
type RateLimitConfig struct {
	RPS   float64 `default:"5"  usage:"Sustained coupon apply requests per second per client"`
	Burst int     `default:"20" usage:"Coupon apply burst size per client"`
}

// SweeperConfig controls the expired-coupon sweeper.
type SweeperConfig struct {
	Schedule string `default:"@every 5m" usage:"Cron schedule for deactivating expired coupons"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files and command line flags, then applies platform-specific
// defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "LUXE",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/luxe/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set LUXE_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Checkout.Pricing(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's LUXE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"skinarb/errs"
)

type Config struct {
	SkinArb SkinArbConfig `yaml:"skinarb"`
	Server  ServerConfig  `yaml:"server"`
	Source  SourceConfig  `yaml:"source"`
	Cache   CacheConfig   `yaml:"cache"`
	Scanner ScannerConfig `yaml:"scanner"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type SkinArbConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address           string `yaml:"address"`
	ReadTimeoutMs     int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs    int    `yaml:"write_timeout_ms"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
}

func (c ServerConfig) ReadTimeout() time.Duration     { return time.Duration(c.ReadTimeoutMs) * time.Millisecond }
func (c ServerConfig) WriteTimeout() time.Duration    { return time.Duration(c.WriteTimeoutMs) * time.Millisecond }
func (c ServerConfig) ShutdownTimeout() time.Duration { return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond }

type SourceConfig struct {
	Buff     BuffSourceConfig     `yaml:"buff"`
	Csmarket CsmarketSourceConfig `yaml:"csmarket"`
}

type BuffSourceConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Game      string          `yaml:"game"`
	SortBy    string          `yaml:"sort_by"`
	TimeoutMs int             `yaml:"timeout_ms"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Cookie is the caller-supplied Buff credential, taken from the
	// BUFF_COOKIE environment variable, never from the config file.
	Cookie string `yaml:"-"`
}

func (c BuffSourceConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

type CsmarketSourceConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Currency  string          `yaml:"currency"`
	TimeoutMs int             `yaml:"timeout_ms"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// APIKey comes from the CSGOMARKET_API_KEY environment variable.
	APIKey string `yaml:"-"`
}

func (c CsmarketSourceConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type CacheConfig struct {
	ListingTTLSeconds    int `yaml:"listing_ttl_seconds"`
	PriceTableTTLSeconds int `yaml:"price_table_ttl_seconds"`
}

func (c CacheConfig) ListingTTL() time.Duration    { return time.Duration(c.ListingTTLSeconds) * time.Second }
func (c CacheConfig) PriceTableTTL() time.Duration { return time.Duration(c.PriceTableTTLSeconds) * time.Second }

type ScannerConfig struct {
	Concurrency     int    `yaml:"concurrency"`
	LookupTimeoutMs int    `yaml:"lookup_timeout_ms"`
	FxCnyUsd        string `yaml:"fx_cny_usd"`

	// Fx is the parsed CNY to USD rate, resolved during LoadConfig.
	Fx decimal.Decimal `yaml:"-"`
}

func (c ScannerConfig) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutMs) * time.Millisecond
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeoutMs:     10000,
			WriteTimeoutMs:    60000,
			ShutdownTimeoutMs: 5000,
		},
		Cache: CacheConfig{
			ListingTTLSeconds:    60,
			PriceTableTTLSeconds: 300,
		},
		Scanner: ScannerConfig{
			Concurrency:     4,
			LookupTimeoutMs: 10000,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Credentials and the FX rate are environment-supplied; the file only
	// carries the documented FX fallback.
	config.Source.Buff.Cookie = strings.TrimSpace(os.Getenv("BUFF_COOKIE"))
	config.Source.Csmarket.APIKey = strings.TrimSpace(os.Getenv("CSGOMARKET_API_KEY"))
	if v := os.Getenv("FX_CNYUSD"); v != "" {
		config.Scanner.FxCnyUsd = strings.TrimSpace(v)
	}

	if err := resolveFx(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// resolveFx parses the configured CNY to USD rate. Missing or non-positive
// rates are fatal: a bad rate would silently corrupt every computed spread.
func resolveFx(cfg *Config) error {
	raw := strings.TrimSpace(cfg.Scanner.FxCnyUsd)
	if raw == "" {
		return &errs.ConfigError{Key: "scanner.fx_cny_usd", Reason: "required (set FX_CNYUSD or scanner.fx_cny_usd)"}
	}
	fx, err := decimal.NewFromString(raw)
	if err != nil {
		return &errs.ConfigError{Key: "scanner.fx_cny_usd", Reason: fmt.Sprintf("invalid rate %q", raw)}
	}
	if !fx.IsPositive() {
		return &errs.ConfigError{Key: "scanner.fx_cny_usd", Reason: fmt.Sprintf("rate must be > 0, got %s", fx)}
	}
	cfg.Scanner.Fx = fx
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.SkinArb.Name == "" {
		return fmt.Errorf("skinarb.name is required")
	}
	if cfg.SkinArb.Version == "" {
		return fmt.Errorf("skinarb.version is required")
	}

	if cfg.Source.Buff.BaseURL == "" {
		return fmt.Errorf("source.buff.base_url is required")
	}
	if cfg.Source.Csmarket.BaseURL == "" {
		return fmt.Errorf("source.csmarket.base_url is required")
	}

	if cfg.Cache.ListingTTLSeconds <= 0 {
		return fmt.Errorf("cache.listing_ttl_seconds must be greater than 0")
	}
	if cfg.Cache.PriceTableTTLSeconds <= 0 {
		return fmt.Errorf("cache.price_table_ttl_seconds must be greater than 0")
	}

	if cfg.Scanner.Concurrency <= 0 {
		return fmt.Errorf("scanner.concurrency must be greater than 0")
	}

	return nil
}

// Package config defines the top-level configuration for the Prophyt API and
// provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/pipeline"
)

// Config is the root configuration structure. Fields are populated from a TOML
// or YAML file and then optionally overridden by PROPHYT_* environment
// variables.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Redis    RedisConfig    `toml:"redis" yaml:"redis"`
	Oracle   OracleConfig   `toml:"oracle" yaml:"oracle"`
	Archive  ArchiveConfig  `toml:"archive" yaml:"archive"`
	S3       S3Config       `toml:"s3" yaml:"s3"`
	Notify   NotifyConfig   `toml:"notify" yaml:"notify"`
	LogLevel string         `toml:"log_level" yaml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port" yaml:"port"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// ExposeErrorDetails adds panic messages to 500 responses.
	ExposeErrorDetails bool            `toml:"expose_error_details" yaml:"expose_error_details"`
	MaxBodyBytes       int64           `toml:"max_body_bytes" yaml:"max_body_bytes"`
	RateLimit          RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	WebSocket          bool            `toml:"websocket" yaml:"websocket"`
}

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	Enabled  bool     `toml:"enabled" yaml:"enabled"`
	Requests int      `toml:"requests" yaml:"requests"`
	Window   Duration `toml:"window" yaml:"window"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers identify the client. Empty trusts no proxy headers.
	TrustedProxies []string `toml:"trusted_proxies" yaml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host
// prefix.
func (r RateLimitConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, entry := range r.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn" yaml:"dsn"`
	Host          string `toml:"host" yaml:"host"`
	Port          int    `toml:"port" yaml:"port"`
	Database      string `toml:"database" yaml:"database"`
	User          string `toml:"user" yaml:"user"`
	Password      string `toml:"password" yaml:"password"`
	SSLMode       string `toml:"ssl_mode" yaml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns" yaml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns" yaml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations" yaml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr and URL
// disables Redis; caching, locking, rate limiting and the WebSocket stream
// are then unavailable.
type RedisConfig struct {
	URL        string   `toml:"url" yaml:"url"`
	Addr       string   `toml:"addr" yaml:"addr"`
	Password   string   `toml:"password" yaml:"password"`
	DB         int      `toml:"db" yaml:"db"`
	PoolSize   int      `toml:"pool_size" yaml:"pool_size"`
	MaxRetries int      `toml:"max_retries" yaml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled" yaml:"tls_enabled"`
	MarketTTL  Duration `toml:"market_ttl" yaml:"market_ttl"`
	PriceTTL   Duration `toml:"price_ttl" yaml:"price_ttl"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Addr) != ""
}

// OracleConfig configures the price updater and the oracle endpoints.
type OracleConfig struct {
	Enabled            bool     `toml:"enabled" yaml:"enabled"`
	Asset              string   `toml:"asset" yaml:"asset"`
	VsCurrency         string   `toml:"vs_currency" yaml:"vs_currency"`
	BaseURL            string   `toml:"base_url" yaml:"base_url"`
	APIKey             string   `toml:"api_key" yaml:"api_key"`
	Interval           Duration `toml:"interval" yaml:"interval"`
	FetchTimeout       Duration `toml:"fetch_timeout" yaml:"fetch_timeout"`
	StaleAfter         Duration `toml:"stale_after" yaml:"stale_after"`
	MaxBackoff         Duration `toml:"max_backoff" yaml:"max_backoff"`
	AllowManualRefresh bool     `toml:"allow_manual_refresh" yaml:"allow_manual_refresh"`
}

// ArchiveConfig configures the price history archiver.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	Cron          string `toml:"cron" yaml:"cron"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint" yaml:"endpoint"`
	Region         string `toml:"region" yaml:"region"`
	Bucket         string `toml:"bucket" yaml:"bucket"`
	AccessKey      string `toml:"access_key" yaml:"access_key"`
	SecretKey      string `toml:"secret_key" yaml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl" yaml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style" yaml:"force_path_style"`
	KeyPrefix      string `toml:"key_prefix" yaml:"key_prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token" yaml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id" yaml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url" yaml:"discord_webhook_url"`
	Events            []string `toml:"events" yaml:"events"`
}

// Duration is a wrapper around time.Duration that decodes from strings such
// as "5m" or "30s" in both TOML and YAML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:               8000,
			ExposeErrorDetails: true,
			MaxBodyBytes:       1 << 20,
			RateLimit: RateLimitConfig{
				Requests: 300,
				Window:   Duration{time.Minute},
			},
			WebSocket: true,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "prophyt",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			MarketTTL:  Duration{30 * time.Second},
			PriceTTL:   Duration{10 * time.Minute},
		},
		Oracle: OracleConfig{
			Enabled:      true,
			Asset:        "sui",
			VsCurrency:   "usd",
			BaseURL:      "https://api.coingecko.com/api/v3",
			Interval:     Duration{60 * time.Second},
			FetchTimeout: Duration{10 * time.Second},
			StaleAfter:   Duration{5 * time.Minute},
			MaxBackoff:   Duration{10 * time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Cron:          "0 3 * * *",
			RetentionDays: 90,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "prophyt-archive",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"oracle_stale", "oracle_recovered", "archive_failed"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, "server: max_body_bytes must be >= 0")
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.Requests < 1 {
			errs = append(errs, "server.rate_limit: requests must be >= 1 when enabled")
		}
		if c.Server.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "server.rate_limit: window must be > 0 when enabled")
		}
		if !c.Redis.Enabled() {
			errs = append(errs, "server.rate_limit: requires redis")
		}
	}
	if _, err := c.Server.RateLimit.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, "server.rate_limit: "+err.Error())
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled() && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.MarketTTL.Duration < 0 {
		errs = append(errs, "redis: market_ttl must be >= 0")
	}
	if c.Redis.PriceTTL.Duration < 0 {
		errs = append(errs, "redis: price_ttl must be >= 0")
	}

	// Oracle
	if strings.TrimSpace(c.Oracle.Asset) == "" {
		errs = append(errs, "oracle: asset must not be empty")
	}
	if c.Oracle.Enabled {
		if strings.TrimSpace(c.Oracle.VsCurrency) == "" {
			errs = append(errs, "oracle: vs_currency must not be empty")
		}
		if _, err := url.ParseRequestURI(c.Oracle.BaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("oracle: base_url %q is not a valid URL", c.Oracle.BaseURL))
		}
		if c.Oracle.Interval.Duration <= 0 {
			errs = append(errs, "oracle: interval must be > 0")
		}
		if c.Oracle.FetchTimeout.Duration <= 0 {
			errs = append(errs, "oracle: fetch_timeout must be > 0")
		}
		if c.Oracle.MaxBackoff.Duration > 0 && c.Oracle.MaxBackoff.Duration < c.Oracle.Interval.Duration {
			errs = append(errs, "oracle: max_backoff must not be shorter than interval")
		}
	}
	if c.Oracle.StaleAfter.Duration < 0 {
		errs = append(errs, "oracle: stale_after must be >= 0")
	}
	if c.Oracle.AllowManualRefresh && !c.Oracle.Enabled {
		errs = append(errs, "oracle: allow_manual_refresh requires the updater to be enabled")
	}

	// Archive
	if c.Archive.Enabled {
		if err := pipeline.ValidateCron(c.Archive.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("archive: cron %q: %v", c.Archive.Cron, err))
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archive is enabled")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, "s3: access_key and secret_key must be set together")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

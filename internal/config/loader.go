package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

// Load reads a TOML or YAML configuration file at path (chosen by extension),
// merges it on top of the built-in defaults, applies environment variable
// overrides, and returns the final Config. An empty path skips the file. The
// returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvOverrides reads well-known PROPHYT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). The conventional PORT, DATABASE_URL and REDIS_URL are honoured as
// fallbacks; the PROPHYT_* form wins when both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "PROPHYT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PROPHYT_SERVER_CORS_ORIGINS")
	setBool(&cfg.Server.ExposeErrorDetails, "PROPHYT_SERVER_EXPOSE_ERROR_DETAILS")
	setInt64(&cfg.Server.MaxBodyBytes, "PROPHYT_SERVER_MAX_BODY_BYTES")
	setBool(&cfg.Server.WebSocket, "PROPHYT_SERVER_WEBSOCKET")
	setBool(&cfg.Server.RateLimit.Enabled, "PROPHYT_SERVER_RATE_LIMIT_ENABLED")
	setInt(&cfg.Server.RateLimit.Requests, "PROPHYT_SERVER_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.Server.RateLimit.Window, "PROPHYT_SERVER_RATE_LIMIT_WINDOW")
	setStringSlice(&cfg.Server.RateLimit.TrustedProxies, "PROPHYT_SERVER_RATE_LIMIT_TRUSTED_PROXIES")

	// ── Database ──
	setStr(&cfg.Database.DSN, "DATABASE_URL")
	setStr(&cfg.Database.DSN, "PROPHYT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "PROPHYT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "PROPHYT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "PROPHYT_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "PROPHYT_DATABASE_USER")
	setStr(&cfg.Database.Password, "PROPHYT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "PROPHYT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "PROPHYT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "PROPHYT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "PROPHYT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Redis.URL, "PROPHYT_REDIS_URL")
	setStrAllowEmpty(&cfg.Redis.Addr, "PROPHYT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PROPHYT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PROPHYT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PROPHYT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PROPHYT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PROPHYT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.MarketTTL, "PROPHYT_REDIS_MARKET_TTL")
	setDuration(&cfg.Redis.PriceTTL, "PROPHYT_REDIS_PRICE_TTL")

	// ── Oracle ──
	setBool(&cfg.Oracle.Enabled, "PROPHYT_ORACLE_ENABLED")
	setStr(&cfg.Oracle.Asset, "PROPHYT_ORACLE_ASSET")
	setStr(&cfg.Oracle.VsCurrency, "PROPHYT_ORACLE_VS_CURRENCY")
	setStr(&cfg.Oracle.BaseURL, "PROPHYT_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.APIKey, "PROPHYT_ORACLE_API_KEY")
	setDuration(&cfg.Oracle.Interval, "PROPHYT_ORACLE_INTERVAL")
	setDuration(&cfg.Oracle.FetchTimeout, "PROPHYT_ORACLE_FETCH_TIMEOUT")
	setDuration(&cfg.Oracle.StaleAfter, "PROPHYT_ORACLE_STALE_AFTER")
	setDuration(&cfg.Oracle.MaxBackoff, "PROPHYT_ORACLE_MAX_BACKOFF")
	setBool(&cfg.Oracle.AllowManualRefresh, "PROPHYT_ORACLE_ALLOW_MANUAL_REFRESH")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PROPHYT_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "PROPHYT_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "PROPHYT_ARCHIVE_RETENTION_DAYS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PROPHYT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PROPHYT_S3_REGION")
	setStr(&cfg.S3.Bucket, "PROPHYT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PROPHYT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PROPHYT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PROPHYT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PROPHYT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.KeyPrefix, "PROPHYT_S3_KEY_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PROPHYT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PROPHYT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PROPHYT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PROPHYT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "PROPHYT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStrAllowEmpty also applies an explicitly empty value, which lets
// operators switch Redis off with PROPHYT_REDIS_ADDR="".
func setStrAllowEmpty(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const tomlBody = `
log_level = "debug"

[server]
port = 9100
cors_origins = ["https://app.prophyt.io"]

[oracle]
asset = "sui"
interval = "30s"
stale_after = "2m"
allow_manual_refresh = true

[archive]
enabled = true
cron = "15 4 * * *"
retention_days = 30
`

const yamlBody = `
log_level: debug
server:
  port: 9100
  cors_origins: ["https://app.prophyt.io"]
oracle:
  asset: sui
  interval: 30s
  stale_after: 2m
  allow_manual_refresh: true
archive:
  enabled: true
  cron: "15 4 * * *"
  retention_days: 30
`

func TestLoadTOMLAndYAMLAgree(t *testing.T) {
	for _, tc := range []struct{ name, body string }{
		{"config.toml", tomlBody},
		{"config.yaml", yamlBody},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PORT", "")
			t.Setenv("PROPHYT_SERVER_PORT", "")

			cfg, err := Load(writeFile(t, tc.name, tc.body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.LogLevel != "debug" || cfg.Server.Port != 9100 {
				t.Errorf("log_level = %q, port = %d", cfg.LogLevel, cfg.Server.Port)
			}
			if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.prophyt.io" {
				t.Errorf("cors_origins = %v", cfg.Server.CORSOrigins)
			}
			if cfg.Oracle.Interval.Duration != 30*time.Second || cfg.Oracle.StaleAfter.Duration != 2*time.Minute {
				t.Errorf("oracle durations = %v / %v", cfg.Oracle.Interval, cfg.Oracle.StaleAfter)
			}
			if !cfg.Oracle.AllowManualRefresh || !cfg.Archive.Enabled || cfg.Archive.Cron != "15 4 * * *" {
				t.Errorf("oracle/archive = %+v / %+v", cfg.Oracle, cfg.Archive)
			}
			// Untouched sections keep their defaults.
			if cfg.Oracle.FetchTimeout.Duration != 10*time.Second || cfg.Oracle.VsCurrency != "usd" {
				t.Errorf("defaults lost: %+v", cfg.Oracle)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Oracle.Asset != "sui" || cfg.Archive.Cron != "0 3 * * *" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	path := writeFile(t, "config.toml", tomlBody)
	t.Setenv("PORT", "7000")
	t.Setenv("PROPHYT_SERVER_PORT", "")
	t.Setenv("PROPHYT_ORACLE_INTERVAL", "15s")
	t.Setenv("PROPHYT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/prophyt")
	t.Setenv("PROPHYT_DATABASE_DSN", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want PORT override", cfg.Server.Port)
	}
	if cfg.Oracle.Interval.Duration != 15*time.Second {
		t.Errorf("interval = %v", cfg.Oracle.Interval)
	}
	if got := strings.Join(cfg.Server.CORSOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("cors = %q", got)
	}
	if cfg.Database.DSN != "postgres://u:p@db:5432/prophyt" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}

	t.Setenv("PROPHYT_SERVER_PORT", "7100")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("port = %d, PROPHYT_SERVER_PORT should beat PORT", cfg.Server.Port)
	}
}

func TestDisableRedisFromEnv(t *testing.T) {
	t.Setenv("PROPHYT_REDIS_ADDR", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PROPHYT_REDIS_URL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Redis.Enabled() {
		t.Errorf("redis should be disabled, addr = %q", cfg.Redis.Addr)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0
	cfg.Oracle.Interval = Duration{}
	cfg.Archive.Enabled = true
	cfg.Archive.Cron = "every day"
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		"log_level",
		"server: port",
		"oracle: interval",
		"archive: cron",
		"telegram_chat_id",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRateLimitNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Server.RateLimit.Enabled = true
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "requires redis") {
		t.Errorf("err = %v", err)
	}
}

func TestTrustedProxyPrefixes(t *testing.T) {
	rl := RateLimitConfig{TrustedProxies: []string{"10.0.0.0/8", " 192.0.2.7 ", "2001:db8::/32", "172.16.5.9/12"}}
	got, err := rl.TrustedProxyPrefixes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"10.0.0.0/8", "192.0.2.7/32", "2001:db8::/32", "172.16.0.0/12"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("prefix %d = %s, want %s", i, got[i], want[i])
		}
	}

	cfg := Defaults()
	cfg.Server.RateLimit.TrustedProxies = []string{"not-an-ip"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "trusted proxy") {
		t.Errorf("err = %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.Oracle.APIKey = "cg-key"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Server.CORSOrigins = []string{"https://a.example"}

	out := RedactedConfig(&cfg)
	if out.Database.Password != "***" || out.Oracle.APIKey != "***" || out.Notify.TelegramToken != "***" {
		t.Errorf("secrets not redacted: %+v", out)
	}
	if out.Database.DSN != "" {
		t.Errorf("empty DSN should stay empty, got %q", out.Database.DSN)
	}
	out.Server.CORSOrigins[0] = "mutated"
	if cfg.Server.CORSOrigins[0] != "https://a.example" {
		t.Error("redacted copy shares slice with original")
	}
	if cfg.Database.Password != "hunter2" {
		t.Error("original mutated")
	}
}

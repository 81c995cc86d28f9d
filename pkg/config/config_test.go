package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	p := c.Pipeline
	if p.ScanInterval() != time.Minute {
		t.Errorf("scan interval = %v", p.ScanInterval())
	}
	if p.ConfirmationTimeout() != 4*time.Hour {
		t.Errorf("confirmation timeout = %v", p.ConfirmationTimeout())
	}
	if p.ConfirmationCheckInterval() != 5*time.Minute {
		t.Errorf("check interval = %v", p.ConfirmationCheckInterval())
	}
	if p.MaxConfirmationAttempts != 12 || p.DailyResetHourLocal != 21 || p.QualityThreshold != 65 {
		t.Errorf("unexpected pipeline defaults: %+v", p)
	}
	if len(p.MajorCoins) != 2 || p.MajorCoins[0] != "BTCUSDT" {
		t.Errorf("major coins = %v", p.MajorCoins)
	}
	if c.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("shutdown timeout = %v", c.Server.ShutdownTimeout)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
pipeline:
  scan_interval_sec: 30
  timezone: UTC
  quality_threshold: 70
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Pipeline.ScanInterval() != 30*time.Second {
		t.Errorf("scan interval = %v", c.Pipeline.ScanInterval())
	}
	if c.Pipeline.Location() != time.UTC {
		t.Errorf("location = %v", c.Pipeline.Location())
	}
	if c.Pipeline.MaxPairs != 100 {
		t.Errorf("untouched default lost: max_pairs = %d", c.Pipeline.MaxPairs)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.EventsTopic != "signalflow.events" {
		t.Errorf("kafka = %+v", c.Kafka)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad timezone", func(c *Config) { c.Pipeline.Timezone = "Mars/Olympus" }},
		{"reset hour", func(c *Config) { c.Pipeline.DailyResetHourLocal = 24 }},
		{"zero interval", func(c *Config) { c.Pipeline.ScanIntervalSec = 0 }},
		{"threshold", func(c *Config) { c.Pipeline.QualityThreshold = 101 }},
		{"attempts", func(c *Config) { c.Pipeline.MaxConfirmationAttempts = 0 }},
		{"simulation", func(c *Config) { c.Pipeline.SimTargetValue = c.Pipeline.SimInvestment }},
		{"postgres url", func(c *Config) { c.Postgres.Enabled = true; c.Postgres.URL = "" }},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"notify via kafka", func(c *Config) { c.Notify.ViaKafka = true }},
		{"telegram creds", func(c *Config) { c.Notify.Telegram.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  timezone: UTC\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/sf")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("HTTP_PORT", "9090")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Postgres.Enabled || c.Postgres.URL != "postgres://u:p@db:5432/sf" {
		t.Errorf("postgres = %+v", c.Postgres)
	}
	if !c.Redis.Enabled || c.Redis.Host != "cache" || c.Redis.Port != 6380 {
		t.Errorf("redis = %+v", c.Redis)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Errorf("kafka = %+v", c.Kafka)
	}
	if !c.Notify.Telegram.Enabled {
		t.Errorf("telegram should be enabled by env credentials")
	}
	if c.Server.Port != 9090 {
		t.Errorf("port = %d", c.Server.Port)
	}
}

func TestLoadWithEnvMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Pipeline.Timezone != "America/Sao_Paulo" {
		t.Errorf("timezone = %q", c.Pipeline.Timezone)
	}
}

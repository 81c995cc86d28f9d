package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		AdminToken      string        `yaml:"admin_token"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Pipeline Pipeline `yaml:"pipeline"`
	Binance  struct {
		BaseURL        string        `yaml:"base_url" default:"https://fapi.binance.com"`
		APIKey         string        `yaml:"api_key"`
		APISecret      string        `yaml:"api_secret"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"30s"`
		MaxRetries     int           `yaml:"max_retries" default:"3"`
		RetryBase      time.Duration `yaml:"retry_base" default:"500ms"`
		RetryMax       time.Duration `yaml:"retry_max" default:"5s"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps" default:"20"`
		RateLimitBurst float64       `yaml:"rate_limit_burst" default:"40"`
	} `yaml:"binance"`
	Postgres struct {
		Enabled         bool          `yaml:"enabled"`
		URL             string        `yaml:"url"`
		MaxConns        int32         `yaml:"max_conns" default:"10"`
		MinConns        int32         `yaml:"min_conns" default:"2"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" default:"30m"`
		MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" default:"5m"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"signalflow"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert" default:"true"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"signalflow"`

		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"signalflow.events"`
		LogsTopic    string   `yaml:"logs_topic" default:"signalflow.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"signalflow-notifier"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Notify struct {
		ViaKafka    bool          `yaml:"via_kafka"`
		QueueSize   int           `yaml:"queue_size" default:"256"`
		SendTimeout time.Duration `yaml:"send_timeout" default:"10s"`
		Telegram    struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
			BaseURL  string `yaml:"base_url" default:"https://api.telegram.org"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
}

// Pipeline holds the signal pipeline tunables. Second-valued keys mirror the
// documented configuration surface; use the Duration accessors in code.
type Pipeline struct {
	ScanIntervalSec              int      `yaml:"scan_interval_sec" default:"60"`
	PairsRefreshSec              int      `yaml:"pairs_refresh_sec" default:"1200"`
	MaxPairs                     int      `yaml:"max_pairs" default:"100"`
	MinLeverage                  int      `yaml:"min_leverage" default:"50"`
	QualityThreshold             float64  `yaml:"quality_threshold" default:"65"`
	ConfirmationTimeoutSec       int      `yaml:"confirmation_timeout_sec" default:"14400"`
	ConfirmationCheckIntervalSec int      `yaml:"confirmation_check_interval_sec" default:"300"`
	MaxConfirmationAttempts      int      `yaml:"max_confirmation_attempts" default:"12"`
	BreakoutMinPct               float64  `yaml:"breakout_min_pct" default:"0.5"`
	VolumeMinRatio               float64  `yaml:"volume_min_ratio" default:"1.2"`
	MonitoringDays               int      `yaml:"monitoring_days" default:"15"`
	MonitorUpdateSec             int      `yaml:"monitor_update_sec" default:"300"`
	SimInvestment                float64  `yaml:"sim_investment" default:"1000"`
	SimTargetValue               float64  `yaml:"sim_target_value" default:"4000"`
	ProfitTargetPct              float64  `yaml:"profit_target_pct" default:"300"`
	Timezone                     string   `yaml:"timezone" default:"America/Sao_Paulo"`
	DailyResetHourLocal          int      `yaml:"daily_reset_hour_local" default:"21"`
	ScanWorkers                  int      `yaml:"scan_workers" default:"10"`
	MonitorWorkers               int      `yaml:"monitor_workers" default:"10"`
	LeaderSymbol                 string   `yaml:"leader_symbol" default:"BTCUSDT"`
	QuoteAsset                   string   `yaml:"quote_asset" default:"USDT"`
	MajorCoins                   []string `yaml:"major_coins" default:"[\"BTCUSDT\",\"ETHUSDT\"]"`
	HighCapCoins                 []string `yaml:"high_cap_coins" default:"[\"BNBUSDT\",\"SOLUSDT\",\"XRPUSDT\",\"ADAUSDT\",\"DOGEUSDT\"]"`
	MidCapCoins                  []string `yaml:"mid_cap_coins" default:"[\"LINKUSDT\",\"AVAXUSDT\",\"DOTUSDT\",\"LTCUSDT\",\"BCHUSDT\",\"TRXUSDT\",\"MATICUSDT\"]"`
}

func (p Pipeline) ScanInterval() time.Duration {
	return time.Duration(p.ScanIntervalSec) * time.Second
}

func (p Pipeline) PairsRefresh() time.Duration {
	return time.Duration(p.PairsRefreshSec) * time.Second
}

func (p Pipeline) ConfirmationTimeout() time.Duration {
	return time.Duration(p.ConfirmationTimeoutSec) * time.Second
}

func (p Pipeline) ConfirmationCheckInterval() time.Duration {
	return time.Duration(p.ConfirmationCheckIntervalSec) * time.Second
}

func (p Pipeline) MonitorUpdateInterval() time.Duration {
	return time.Duration(p.MonitorUpdateSec) * time.Second
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (p Pipeline) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file falls back to defaults so the binary can run from env alone.
func LoadWithEnv(path string) (*Config, error) {
	var c *Config
	if _, err := os.Stat(path); err == nil {
		c, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		c = Default()
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if n, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = n
			}
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.Telegram.ChatID = v
	}
	if c.Notify.Telegram.BotToken != "" && c.Notify.Telegram.ChatID != "" {
		c.Notify.Telegram.Enabled = true
	}
	if v := os.Getenv("SIGNALFLOW_TIMEZONE"); v != "" {
		c.Pipeline.Timezone = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	p := c.Pipeline
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("pipeline.timezone %q: %w", p.Timezone, err)
	}
	if p.DailyResetHourLocal < 0 || p.DailyResetHourLocal > 23 {
		return fmt.Errorf("pipeline.daily_reset_hour_local must be in 0..23, got %d", p.DailyResetHourLocal)
	}
	if p.ScanIntervalSec <= 0 || p.PairsRefreshSec <= 0 || p.ConfirmationTimeoutSec <= 0 ||
		p.ConfirmationCheckIntervalSec <= 0 || p.MonitorUpdateSec <= 0 {
		return fmt.Errorf("pipeline intervals must be positive")
	}
	if p.MaxPairs < 1 {
		return fmt.Errorf("pipeline.max_pairs must be >= 1")
	}
	if p.QualityThreshold < 0 || p.QualityThreshold > 100 {
		return fmt.Errorf("pipeline.quality_threshold must be in [0,100]")
	}
	if p.MaxConfirmationAttempts < 1 {
		return fmt.Errorf("pipeline.max_confirmation_attempts must be >= 1")
	}
	if p.SimInvestment <= 0 || p.SimTargetValue <= p.SimInvestment {
		return fmt.Errorf("pipeline.sim_target_value must exceed sim_investment")
	}
	if p.ScanWorkers < 1 || p.MonitorWorkers < 1 {
		return fmt.Errorf("pipeline worker counts must be >= 1")
	}
	if p.LeaderSymbol == "" || p.QuoteAsset == "" {
		return fmt.Errorf("pipeline.leader_symbol and quote_asset are required")
	}
	if c.Postgres.Enabled && c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required when postgres is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Notify.ViaKafka && !c.Kafka.Enabled {
		return fmt.Errorf("notify.via_kafka requires kafka.enabled")
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id")
	}
	return nil
}

package main

import (
	"errors"
	"flag"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"SignalFlow/internal/di"
	"SignalFlow/pkg/config"
	"SignalFlow/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "path to the YAML config")
		envPath    = flag.String("env", ".env", "dotenv file loaded before the config, if present")
	)
	flag.Parse()

	// The application logger is built from config; this one covers startup.
	boot, _ := logger.New(&logger.Config{Level: "info", Format: "console", Output: "stderr"})
	boot = boot.Component("bootstrap")

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		boot.Warn("dotenv not loaded", logger.String("path", *envPath), logger.Error(err))
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		boot.Error("load config", logger.String("path", *configPath), logger.Error(err))
		os.Exit(1)
	}
	boot.Info("config loaded",
		logger.String("env", cfg.Environment),
		logger.String("timezone", cfg.Pipeline.Timezone),
		logger.Int("daily_reset_hour", cfg.Pipeline.DailyResetHourLocal),
		logger.Bool("postgres", cfg.Postgres.Enabled),
		logger.Bool("clickhouse", cfg.ClickHouse.Enabled),
		logger.Bool("redis", cfg.Redis.Enabled),
		logger.Bool("kafka", cfg.Kafka.Enabled),
	)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Error("initialize app", logger.Error(err))
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		boot.Error("app stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

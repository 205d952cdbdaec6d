// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, e.g. config.production.yaml
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // ignore error if not found

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the usual locations so the service can be
// started from the repo root or from cmd/alert-runner.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	for _, p := range possiblePaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "alert-runner"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.App.ListenAddr == "" {
		cfg.App.ListenAddr = ":9090"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Push.APNs.Timeout == 0 {
		cfg.Push.APNs.Timeout = 10000
	}
	if cfg.Push.APNs.SendsPerSec == 0 {
		cfg.Push.APNs.SendsPerSec = 50
	}
	if cfg.Pipeline.MaxPerHour == 0 {
		cfg.Pipeline.MaxPerHour = 5
	}
	if cfg.Pipeline.MaxPerDay == 0 {
		cfg.Pipeline.MaxPerDay = 20
	}
	if cfg.Pipeline.QuietHoursStart == 0 && cfg.Pipeline.QuietHoursEnd == 0 {
		cfg.Pipeline.QuietHoursStart = 8
		cfg.Pipeline.QuietHoursEnd = 22
	}
	if cfg.Pipeline.RecencyWindow == 0 {
		cfg.Pipeline.RecencyWindow = 24
	}
	if cfg.Pipeline.JobLimit == 0 {
		cfg.Pipeline.JobLimit = 500
	}
	if cfg.Pipeline.DeviceTimeout == 0 {
		cfg.Pipeline.DeviceTimeout = 30000
	}
	if cfg.Pipeline.LockLease == 0 {
		cfg.Pipeline.LockLease = 10000
	}
	if cfg.Scheduler.Interval == "" {
		cfg.Scheduler.Interval = "@every 15m"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Pipeline.QuietHoursStart < 0 || cfg.Pipeline.QuietHoursStart > 23 {
		return fmt.Errorf("pipeline.quiet_hours_start must be in [0,23]")
	}
	if cfg.Pipeline.QuietHoursEnd < 0 || cfg.Pipeline.QuietHoursEnd > 24 {
		return fmt.Errorf("pipeline.quiet_hours_end must be in [0,24]")
	}
	if cfg.Pipeline.MaxPerHour > cfg.Pipeline.MaxPerDay {
		return fmt.Errorf("pipeline.max_per_hour cannot exceed pipeline.max_per_day")
	}
	return nil
}

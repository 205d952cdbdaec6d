// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Push      PushConfig      `mapstructure:"push"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"` // metrics + admin endpoint
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PushConfig holds APNs transport settings.
type PushConfig struct {
	APNs APNsConfig `mapstructure:"apns"`
}

type APNsConfig struct {
	KeyPath     string `mapstructure:"key_path"` // .p8 signing key
	KeyID       string `mapstructure:"key_id"`
	TeamID      string `mapstructure:"team_id"`
	Topic       string `mapstructure:"topic"` // app bundle id
	Production  bool   `mapstructure:"production"`
	Timeout     int    `mapstructure:"timeout"`          // milliseconds, per send
	SendsPerSec int    `mapstructure:"sends_per_second"` // provider call smoothing
}

// PipelineConfig holds the matching/dispatch pipeline settings.
type PipelineConfig struct {
	MaxPerHour      int    `mapstructure:"max_per_hour"`
	MaxPerDay       int    `mapstructure:"max_per_day"`
	QuietHoursStart int    `mapstructure:"quiet_hours_start"` // active window start, UTC hour
	QuietHoursEnd   int    `mapstructure:"quiet_hours_end"`   // active window end, UTC hour (exclusive)
	RecencyWindow   int    `mapstructure:"recency_window"`    // hours of postings considered per pass
	JobLimit        int    `mapstructure:"job_limit"`
	SourceFilter    string `mapstructure:"source_filter"`
	DeviceTimeout   int    `mapstructure:"device_timeout"` // milliseconds, per-device pipeline deadline
	LockLease       int    `mapstructure:"lock_lease"`     // milliseconds, dedup lease duration
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"` // cron spec, e.g. "@every 15m"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Environment overrides for the two externally-supplied values:
// store endpoint and access credential.
const (
	envMySQLDSN = "MESHTRACK_MYSQL_DSN"
	envAPIKey   = "MESHTRACK_API_KEY"
)

// Config global configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Redis   RedisConfig   `yaml:"redis"`
	Retry   RetryConfig   `yaml:"retry"`
	Node    NodeConfig    `yaml:"node"`
	Message MessageConfig `yaml:"message"`
	Task    TaskConfig    `yaml:"task"`
	Logger  LoggerConfig  `yaml:"logger"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // Bearer token for mutating routes (empty disables auth)
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	DSN      string `yaml:"dsn"` // Full DSN override; wins over the individual fields
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RetryConfig persistence gateway retry configuration
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`  // Attempt ceiling per operation
	BaseDelayMs int `yaml:"base_delay_ms"` // Linear backoff base (delay = base * attempt)
}

// NodeConfig node registry configuration
type NodeConfig struct {
	HeartbeatTimeout int `yaml:"heartbeat_timeout"` // Seconds before a silent node is swept OFFLINE
	SweepInterval    int `yaml:"sweep_interval"`    // Stale-node sweep interval (seconds)
}

// MessageConfig message log configuration
type MessageConfig struct {
	RetentionHours int `yaml:"retention_hours"` // Terminal messages older than this are purged
	PurgeInterval  int `yaml:"purge_interval"`  // Purge job interval (seconds)
}

// TaskConfig task tracker configuration
type TaskConfig struct {
	DefaultTimeoutMs     int64 `yaml:"default_timeout_ms"`     // Applied when a create request omits timeout
	DefaultPriority      int   `yaml:"default_priority"`       // Applied when a create request omits priority
	TimeoutSweepInterval int   `yaml:"timeout_sweep_interval"` // Timed-out task sweep interval (seconds)
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// ConnString returns the MySQL connection string, preferring the DSN override.
func (m MySQLConfig) ConnString() string {
	if m.DSN != "" {
		return m.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		m.User, m.Password, m.Host, m.Port, m.Database)
}

// BaseDelay returns the backoff base as a duration.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// Init initializes configuration
func Init() error {
	// .env is optional; absence is not an error
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	applyEnvOverrides(&cfg)
	validateAndApplyDefaults(&cfg)

	GlobalConfig = &cfg
	return nil
}

// applyEnvOverrides applies the environment contract: store endpoint and credential.
func applyEnvOverrides(cfg *Config) {
	if dsn := os.Getenv(envMySQLDSN); dsn != "" {
		cfg.MySQL.DSN = dsn
	}
	if key := os.Getenv(envAPIKey); key != "" {
		cfg.Server.APIKey = key
	}
}

// validateAndApplyDefaults replaces missing or invalid values with defaults
// so a sparse config file still yields an operational instance.
func validateAndApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMs <= 0 {
		cfg.Retry.BaseDelayMs = 1000
	}
	if cfg.Node.HeartbeatTimeout <= 0 {
		cfg.Node.HeartbeatTimeout = 60
	}
	if cfg.Node.SweepInterval <= 0 {
		cfg.Node.SweepInterval = 30
	}
	if cfg.Message.RetentionHours <= 0 {
		cfg.Message.RetentionHours = 72
	}
	if cfg.Message.PurgeInterval <= 0 {
		cfg.Message.PurgeInterval = 300
	}
	if cfg.Task.DefaultTimeoutMs <= 0 {
		cfg.Task.DefaultTimeoutMs = 300_000
	}
	if cfg.Task.DefaultPriority < 0 {
		cfg.Task.DefaultPriority = 0
	}
	if cfg.Task.TimeoutSweepInterval <= 0 {
		cfg.Task.TimeoutSweepInterval = 15
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = "console"
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"planik/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Remote     RemoteConfig     `yaml:"remote"`
	Sync       SyncConfig       `yaml:"sync"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address       string `yaml:"address"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	PoolSize      int    `yaml:"pool_size"`
	DeadLetterKey string `yaml:"dead_letter_key"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

// RemoteConfig points at the remote document store the queue is drained
// against.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SyncConfig tunes the orchestrator and connectivity monitor.
type SyncConfig struct {
	MaxRetries           int    `yaml:"max_retries"`
	InitialDelayMs       int    `yaml:"initial_delay_ms"`
	MaxDelayMs           int    `yaml:"max_delay_ms"`
	DrainIntervalSeconds int    `yaml:"drain_interval_seconds"`
	ProbeURL             string `yaml:"probe_url"`
	ProbeTimeoutSeconds  int    `yaml:"probe_timeout_seconds"`
	PurgeExhausted       bool   `yaml:"purge_exhausted"`
}

func (s SyncConfig) InitialDelay() time.Duration {
	return time.Duration(s.InitialDelayMs) * time.Millisecond
}

func (s SyncConfig) MaxDelay() time.Duration {
	return time.Duration(s.MaxDelayMs) * time.Millisecond
}

func (s SyncConfig) DrainInterval() time.Duration {
	return time.Duration(s.DrainIntervalSeconds) * time.Second
}

func (s SyncConfig) ProbeTimeout() time.Duration {
	return time.Duration(s.ProbeTimeoutSeconds) * time.Second
}

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand environment variables referenced inside the YAML.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must be >= 0, got %d", c.Sync.MaxRetries)
	}
	if c.Sync.InitialDelayMs > c.Sync.MaxDelayMs {
		return fmt.Errorf("sync.initial_delay_ms %d exceeds sync.max_delay_ms %d", c.Sync.InitialDelayMs, c.Sync.MaxDelayMs)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "planik"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Redis.DeadLetterKey == "" {
		c.Redis.DeadLetterKey = models.DefaultDeadLetterKey
	}
	if c.Remote.TimeoutSeconds == 0 {
		c.Remote.TimeoutSeconds = 30
	}

	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = models.DefaultMaxRetries
	}
	if c.Sync.InitialDelayMs == 0 {
		c.Sync.InitialDelayMs = int(models.DefaultInitialDelay / time.Millisecond)
	}
	if c.Sync.MaxDelayMs == 0 {
		c.Sync.MaxDelayMs = int(models.DefaultMaxDelay / time.Millisecond)
	}
	if c.Sync.DrainIntervalSeconds == 0 {
		c.Sync.DrainIntervalSeconds = int(models.DefaultDrainInterval / time.Second)
	}
	if c.Sync.ProbeTimeoutSeconds == 0 {
		c.Sync.ProbeTimeoutSeconds = int(models.DefaultProbeTimeout / time.Second)
	}
	if c.Sync.ProbeURL == "" {
		c.Sync.ProbeURL = "https://www.gstatic.com/generate_204"
	}
}

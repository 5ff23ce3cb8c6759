package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Spool   SpoolConfig   `yaml:"spool"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	APIKey     string        `yaml:"api_key"`
	APIKeyHash string        `yaml:"api_key_hash"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

type SpoolConfig struct {
	TempDir      string        `yaml:"temp_dir"`
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
	Retention    time.Duration `yaml:"retention"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

type ArchiveConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         63856,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Enabled:  false,
			TokenTTL: 24 * time.Hour,
		},
		Spool: SpoolConfig{
			TempDir:      "",
			Workers:      2,
			QueueSize:    256,
			PollInterval: 500 * time.Millisecond,
			JobTimeout:   2 * time.Minute,
			Retention:    time.Hour,
			ReapInterval: time.Minute,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Path:          "./data/history.db",
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configPath over the defaults. A missing file is not an
// error; the agent runs with defaults plus environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AGENT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("AGENT_TEMP_DIR"); v != "" {
		c.Spool.TempDir = v
	}
	if v := os.Getenv("AGENT_API_KEY"); v != "" {
		c.Auth.Enabled = true
		c.Auth.APIKey = v
	}
	if v := os.Getenv("AGENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Auth.Enabled && c.Auth.APIKey == "" && c.Auth.APIKeyHash == "" {
		return fmt.Errorf("auth is enabled but neither api_key nor api_key_hash is set")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}

	if c.Spool.Workers < 1 {
		return fmt.Errorf("spool workers must be at least 1")
	}

	if c.Spool.QueueSize < 1 {
		return fmt.Errorf("spool queue size must be at least 1")
	}

	if c.Spool.PollInterval <= 0 {
		return fmt.Errorf("spool poll interval must be positive")
	}

	if c.Spool.JobTimeout <= 0 {
		return fmt.Errorf("spool job timeout must be positive")
	}

	if c.Spool.Retention <= 0 {
		return fmt.Errorf("spool retention must be positive")
	}

	if c.Spool.ReapInterval <= 0 {
		return fmt.Errorf("spool reap interval must be positive")
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive is enabled but path is empty")
	}

	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("archive retention days must be non-negative")
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}

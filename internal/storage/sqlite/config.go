package sqlite

import (
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/storage"
)

type Config struct {
	DatabasePath string
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.ConfigError("database path is required")
	}
	return nil
}

func (c *Config) GetType() string {
	return "sqlite"
}

// GetConnectionString enables foreign keys and a busy timeout so concurrent
// writers wait instead of failing with SQLITE_BUSY.
func (c *Config) GetConnectionString() string {
	if c.DatabasePath == ":memory:" {
		return c.DatabasePath
	}
	return "file:" + c.DatabasePath + "?_busy_timeout=5000&_foreign_keys=on"
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "./scheduler_webhook.db",
	}
}

func configFrom(config storage.StorageConfig) (*Config, error) {
	switch c := config.(type) {
	case *Config:
		return c, nil
	case storage.GenericConfig:
		return &Config{DatabasePath: c.String("path")}, nil
	default:
		return nil, errors.ConfigError("invalid config type for SQLite storage")
	}
}

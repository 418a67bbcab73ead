package postgres

import (
	"fmt"
	"net/url"
	"strconv"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/storage"
)

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.ConfigError("PostgreSQL host is required")
	}

	if c.Port <= 0 {
		c.Port = 5432
	}

	if c.Database == "" {
		return errors.ConfigError("PostgreSQL database name is required")
	}

	if c.Username == "" {
		return errors.ConfigError("PostgreSQL username is required")
	}

	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}

	return nil
}

func (c *Config) GetType() string {
	return "postgres"
}

// GetConnectionString renders a URL accepted by the pgx driver
func (c *Config) GetConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

func NewConfigFromURL(connStr string) (*Config, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid PostgreSQL URL: %v", err))
	}

	config := &Config{
		Host:     u.Hostname(),
		Port:     5432,
		Username: u.User.Username(),
		SSLMode:  "prefer",
	}
	if len(u.Path) > 1 {
		config.Database = u.Path[1:]
	}
	if p := u.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			config.Port = port
		}
	}
	if password, ok := u.User.Password(); ok {
		config.Password = password
	}
	if sslMode := u.Query().Get("sslmode"); sslMode != "" {
		config.SSLMode = sslMode
	}

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "scheduler_webhook",
		Username: "postgres",
		SSLMode:  "prefer",
	}
}

func configFrom(config storage.StorageConfig) (*Config, error) {
	switch c := config.(type) {
	case *Config:
		return c, nil
	case storage.GenericConfig:
		if cs := c.GetConnectionString(); cs != "" {
			return NewConfigFromURL(cs)
		}
		return &Config{
			Host:     c.String("host"),
			Port:     c.Int("port"),
			Database: c.String("database"),
			Username: c.String("username"),
			Password: c.String("password"),
			SSLMode:  c.String("sslmode"),
		}, nil
	default:
		return nil, errors.ConfigError("invalid config type for PostgreSQL storage")
	}
}

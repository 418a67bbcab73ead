package redis

import (
	"fmt"
	"time"

	"scheduler-webhook/internal/common/validation"
)

type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	Timeout      time.Duration
	Stream       string // default stream when a message names none
	StreamMaxLen int64  // approximate cap on stream length, 0 = no limit
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.StreamMaxLen < 0 {
		c.StreamMaxLen = 0
	}
	if c.Stream == "" {
		c.Stream = "scheduler-activations"
	}

	return validation.NewValidatorWithPrefix("Redis config").
		RequireString(c.Address, "address").
		RequireRange(c.DB, 0, 15, "db").
		Error()
}

func (c *Config) GetType() string {
	return "redis"
}

// GetConnectionString omits the password
func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("redis://%s/%d", c.Address, c.DB)
}

func DefaultConfig() *Config {
	return &Config{
		Address:  "localhost:6379",
		PoolSize: 10,
		Timeout:  5 * time.Second,
		Stream:   "scheduler-activations",
	}
}

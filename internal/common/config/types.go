// Package config holds configuration fragments shared by the broker
// configurations.
//
// Example usage:
//
//	type Config struct {
//		config.BaseConnConfig
//		// broker-specific fields...
//	}
package config

import (
	"time"
)

// BaseConnConfig provides the connection timeout and retry settings common
// to every broker type.
type BaseConnConfig struct {
	// Timeout bounds a single connect or publish call
	Timeout time.Duration `json:"timeout"`
	// RetryMax is the maximum number of retry attempts for failed operations
	RetryMax int `json:"retry_max"`
}

// SetConnectionDefaults fills unset fields. A zero defaultTimeout means 30s;
// RetryMax defaults to 3.
func (c *BaseConnConfig) SetConnectionDefaults(defaultTimeout time.Duration) {
	if defaultTimeout == 0 {
		defaultTimeout = 30 * time.Second
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
}

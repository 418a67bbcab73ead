package rabbitmq

import (
	"fmt"
	"net/url"

	"scheduler-webhook/internal/common/validation"
)

type Config struct {
	URL        string `json:"url"`
	PoolSize   int    `json:"pool_size"`
	Queue      string `json:"queue"`
	Exchange   string `json:"exchange,omitempty"`
	RoutingKey string `json:"routing_key,omitempty"`
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.Exchange != "" && c.RoutingKey == "" {
		c.RoutingKey = c.Queue
	}

	v := validation.NewValidatorWithPrefix("RabbitMQ config")
	v.RequireString(c.URL, "url")
	v.Validate(func() error {
		if c.URL == "" {
			return nil
		}
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			return fmt.Errorf("url must be an amqp:// or amqps:// URL")
		}
		return nil
	})
	v.RequireRange(c.PoolSize, 1, 100, "pool_size")
	v.ValidateIf(c.Queue == "" && c.Exchange == "", func() error {
		return fmt.Errorf("queue or exchange is required")
	})

	return v.Error()
}

// GetConnectionString returns the broker host without credentials
func (c *Config) GetConnectionString() string {
	if parsedURL, err := url.Parse(c.URL); err == nil {
		return fmt.Sprintf("rabbitmq://%s", parsedURL.Host)
	}
	return "rabbitmq://***"
}

func (c *Config) GetType() string {
	return "rabbitmq"
}

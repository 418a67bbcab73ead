package kafka

import (
	"fmt"
	"strings"
	"time"

	"scheduler-webhook/internal/common/validation"
)

type Config struct {
	Brokers          []string
	ClientID         string
	Topic            string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Timeout          time.Duration
	RetryMax         int
	FlushFrequency   time.Duration
}

var (
	securityProtocols = []string{"PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL"}
	saslMechanisms    = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}
)

func (c *Config) Validate() error {
	if c.ClientID == "" {
		c.ClientID = "scheduler-webhook"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.FlushFrequency <= 0 {
		c.FlushFrequency = 100 * time.Millisecond
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}

	v := validation.NewValidatorWithPrefix("Kafka config")

	v.ValidateIf(len(c.Brokers) == 0, func() error {
		return fmt.Errorf("brokers are required")
	})
	for _, broker := range c.Brokers {
		v.ValidateIf(strings.TrimSpace(broker) == "", func() error {
			return fmt.Errorf("empty broker address")
		})
	}
	v.RequireString(c.Topic, "topic")
	v.RequireOneOf(c.SecurityProtocol, securityProtocols, "security_protocol")

	if strings.HasPrefix(c.SecurityProtocol, "SASL_") {
		if c.SASLMechanism == "" {
			c.SASLMechanism = "PLAIN"
		}
		v.RequireOneOf(c.SASLMechanism, saslMechanisms, "sasl_mechanism")
		v.ValidateIf(c.SASLUsername == "" || c.SASLPassword == "", func() error {
			return fmt.Errorf("SASL username and password are required for SASL authentication")
		})
	}

	return v.Error()
}

func (c *Config) GetType() string {
	return "kafka"
}

func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",")
}

func DefaultConfig() *Config {
	return &Config{
		Brokers:          []string{"localhost:9092"},
		ClientID:         "scheduler-webhook",
		Topic:            "scheduler-activations",
		SecurityProtocol: "PLAINTEXT",
		Timeout:          30 * time.Second,
		RetryMax:         3,
		FlushFrequency:   100 * time.Millisecond,
	}
}

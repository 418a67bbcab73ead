package gcp

import (
	"fmt"
	"time"

	"google.golang.org/api/option"

	"scheduler-webhook/internal/common/config"
	"scheduler-webhook/internal/common/validation"
)

type Config struct {
	config.BaseConnConfig

	ProjectID             string
	CredentialsJSON       string // JSON credentials (optional - can use ADC)
	CredentialsPath       string // Path to service account key file (optional)
	TopicID               string // Pub/Sub topic ID
	CreateTopic           bool   // Create the topic when it does not exist
	EnableMessageOrdering bool
	OrderingKey           string

	// Options are appended to the client options, e.g. an emulator connection
	Options []option.ClientOption `json:"-"`
}

func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("GCP Pub/Sub config")

	v.RequireString(c.ProjectID, "project_id")
	v.RequireString(c.TopicID, "topic_id")

	c.SetConnectionDefaults(30 * time.Second)

	v.ValidateIf(c.EnableMessageOrdering && c.OrderingKey == "", func() error {
		return fmt.Errorf("ordering_key is required when message ordering is enabled")
	})

	return v.Error()
}

func (c *Config) GetType() string {
	return "gcp"
}

func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("pubsub://projects/%s/topics/%s", c.ProjectID, c.TopicID)
}

func (c *Config) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	} else if c.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsPath))
	}
	return append(opts, c.Options...)
}

func DefaultConfig() *Config {
	config := &Config{}
	config.SetConnectionDefaults(30 * time.Second)
	return config
}

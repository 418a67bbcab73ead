package aws

import (
	"fmt"
	"strings"
	"time"

	"scheduler-webhook/internal/common/config"
	"scheduler-webhook/internal/common/validation"
)

type Config struct {
	config.BaseConnConfig

	Region          string
	AccessKeyID     string // Optional; the default credential chain is used when empty
	SecretAccessKey string
	SessionToken    string // Optional for temporary credentials
	QueueURL        string // For SQS
	TopicArn        string // For SNS
	Endpoint        string // Optional endpoint override, e.g. LocalStack
}

func (c *Config) Validate() error {
	v := validation.NewValidatorWithPrefix("AWS config")

	v.RequireString(c.Region, "region")

	v.ValidateIf((c.AccessKeyID == "") != (c.SecretAccessKey == ""), func() error {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	})
	v.ValidateIf(c.QueueURL == "" && c.TopicArn == "", func() error {
		return fmt.Errorf("either QueueURL (for SQS) or TopicArn (for SNS) is required")
	})
	v.ValidateIf(c.TopicArn != "" && !strings.HasPrefix(c.TopicArn, "arn:"), func() error {
		return fmt.Errorf("topic_arn must be an ARN")
	})
	if c.QueueURL != "" {
		v.RequireURL(c.QueueURL, "queue_url")
	}
	if c.Endpoint != "" {
		v.RequireURL(c.Endpoint, "endpoint")
	}

	c.SetConnectionDefaults(30 * time.Second)

	return v.Error()
}

func (c *Config) GetType() string {
	return "aws"
}

func (c *Config) GetConnectionString() string {
	if c.QueueURL != "" {
		return fmt.Sprintf("sqs://%s/%s", c.Region, c.QueueURL)
	}
	if c.TopicArn != "" {
		return fmt.Sprintf("sns://%s/%s", c.Region, c.TopicArn)
	}
	return fmt.Sprintf("aws://%s", c.Region)
}

// IsFIFO reports whether the queue is a FIFO queue
func (c *Config) IsFIFO() bool {
	return strings.HasSuffix(c.QueueURL, ".fifo")
}

func DefaultConfig() *Config {
	config := &Config{Region: "us-east-1"}
	config.SetConnectionDefaults(30 * time.Second)
	return config
}

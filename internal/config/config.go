// Package config provides configuration management for the scheduler webhook
// service. It loads settings from environment variables (optionally seeded
// from a .env file) with sensible defaults and validates them before the
// application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path, empty logs to stdout
//   - HTTP_NODE_ROOT: Prefix under which trigger routes are mounted (default: "")
//   - API_MAX_LENGTH: Inbound body limit, e.g. 5mb, 512kb or bytes (default: 5mb)
//   - TLS_CERT_FILE, TLS_KEY_FILE: Serve HTTPS when both are set
//
// Scheduler Configuration:
//   - SCHEDULER_LOCATION: Cloud Scheduler location, empty discovers the first one
//   - SCHEDULER_TIMEZONE: Default job time zone (default: local zone, else UTC)
//   - PUBLIC_BASE_URL: Base URL prepended to relative trigger paths
//   - CREDENTIALS_DIR: Directory of {ref}.json service account keys
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./scheduler_webhook.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis Configuration (enables the cross-instance reconciliation lock):
//   - REDIS_ADDRESS: Redis server address, empty disables Redis
//   - REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE
//
// Security Configuration:
//   - CONFIG_ENCRYPTION_KEY: 32 character key for credentials at rest
//
// Activation Emitter:
//   - EMITTER_TYPE: memory, redis, gcp, rabbitmq, aws or kafka (default: memory)
//   - EMITTER_TOPIC: Stream, topic or queue name (default: scheduler-activations)
//   - GCP_PROJECT_ID, RABBITMQ_URL, AWS_REGION, AWS_QUEUE_URL, AWS_TOPIC_ARN,
//     AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, KAFKA_BROKERS
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/utils"
	"scheduler-webhook/internal/common/validation"
)

// DefaultMaxBodyBytes is used when API_MAX_LENGTH is unset or invalid
const DefaultMaxBodyBytes = 5 << 20

// Emitter types
const (
	EmitterMemory   = "memory"
	EmitterRedis    = "redis"
	EmitterGCP      = "gcp"
	EmitterRabbitMQ = "rabbitmq"
	EmitterAWS      = "aws"
	EmitterKafka    = "kafka"
)

// EmitterTypes lists the accepted EMITTER_TYPE values
var EmitterTypes = []string{EmitterMemory, EmitterRedis, EmitterGCP, EmitterRabbitMQ, EmitterAWS, EmitterKafka}

// Config holds all configuration values. All string fields correspond to
// environment variables.
type Config struct {
	// Application settings
	Port         string
	LogLevel     string
	LogFile      string
	HTTPNodeRoot string // mount prefix for trigger routes
	APIMaxLength string // inbound body limit
	TLSCertFile  string
	TLSKeyFile   string

	// Scheduler settings
	SchedulerLocation string
	SchedulerTimeZone string
	PublicBaseURL     string
	CredentialsDir    string

	// Database configuration
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration for distributed coordination
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Encryption configuration
	EncryptionKey string

	// Activation emitter
	EmitterType        string
	EmitterTopic       string
	GCPProjectID       string
	RabbitMQURL        string
	AWSRegion          string
	AWSQueueURL        string
	AWSTopicARN        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	KafkaBrokers       string
}

// LoadEnvFile loads a .env file into the process environment. Variables
// that are already set win. A missing file is not an error.
func LoadEnvFile(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	var existing []string
	for _, name := range filenames {
		if _, err := os.Stat(name); err == nil {
			existing = append(existing, name)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load creates a Config from environment variables. It does not validate;
// call Validate on the result.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
		HTTPNodeRoot: normalizeRoot(getEnv("HTTP_NODE_ROOT", "")),
		APIMaxLength: getEnv("API_MAX_LENGTH", "5mb"),
		TLSCertFile:  getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:   getEnv("TLS_KEY_FILE", ""),

		SchedulerLocation: getEnv("SCHEDULER_LOCATION", ""),
		SchedulerTimeZone: getEnv("SCHEDULER_TIMEZONE", localZoneName()),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		CredentialsDir:    getEnv("CREDENTIALS_DIR", ""),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./scheduler_webhook.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "scheduler_webhook"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),

		EmitterType:        strings.ToLower(getEnv("EMITTER_TYPE", EmitterMemory)),
		EmitterTopic:       getEnv("EMITTER_TOPIC", "scheduler-activations"),
		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSQueueURL:        getEnv("AWS_QUEUE_URL", ""),
		AWSTopicARN:        getEnv("AWS_TOPIC_ARN", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
	}
}

// getEnv retrieves an environment variable value or returns defaultValue if
// it is unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRoot(root string) string {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root == "" {
		return ""
	}
	return "/" + root
}

func localZoneName() string {
	if tz := os.Getenv("TZ"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if name := time.Now().Location().String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}

// MaxBodyBytes returns the parsed API_MAX_LENGTH
func (c *Config) MaxBodyBytes() int64 {
	n, err := utils.ParseByteSize(c.APIMaxLength)
	if err != nil || n <= 0 {
		return DefaultMaxBodyBytes
	}
	return n
}

// RedisEnabled reports whether a Redis address is configured
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// RedisDBNumber returns REDIS_DB as an int
func (c *Config) RedisDBNumber() int {
	n, _ := strconv.Atoi(c.RedisDB)
	return n
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as an int
func (c *Config) RedisPoolSizeNumber() int {
	n, _ := strconv.Atoi(c.RedisPoolSize)
	return n
}

// KafkaBrokerList splits KAFKA_BROKERS on commas
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Validate checks required fields, formats and cross-field dependencies.
// All problems are reported together in one validation error.
func (c *Config) Validate() error {
	v := validation.NewValidator()

	v.Validate(func() error { return portError("PORT", c.Port) })

	v.Validate(func() error {
		if _, err := utils.ParseByteSize(c.APIMaxLength); err != nil {
			return validationError("API_MAX_LENGTH must be a size such as 5mb, 512kb or a byte count")
		}
		return nil
	})

	v.ValidateIf((c.TLSCertFile == "") != (c.TLSKeyFile == ""), func() error {
		return validationError("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	})

	v.ValidateIf(c.SchedulerTimeZone != "", func() error {
		if _, err := time.LoadLocation(c.SchedulerTimeZone); err != nil {
			return validationError("SCHEDULER_TIMEZONE must be an IANA time zone")
		}
		return nil
	})

	v.ValidateIf(c.PublicBaseURL != "", func() error {
		return validation.NewValidator().RequireURL(c.PublicBaseURL, "PUBLIC_BASE_URL").Error()
	})

	// "postgresql" is accepted as an alias
	if c.DatabaseType == "postgresql" {
		c.DatabaseType = "postgres"
	}
	v.RequireOneOf(c.DatabaseType, []string{"sqlite", "postgres"}, "DATABASE_TYPE")

	if c.DatabaseType == "sqlite" {
		v.RequireString(c.DatabasePath, "DATABASE_PATH")
	}
	if c.DatabaseType == "postgres" {
		v.RequireString(c.PostgresHost, "POSTGRES_HOST").
			RequireString(c.PostgresDB, "POSTGRES_DB").
			RequireString(c.PostgresUser, "POSTGRES_USER").
			Validate(func() error { return portError("POSTGRES_PORT", c.PostgresPort) })
	}

	if c.RedisEnabled() {
		db, err := strconv.Atoi(c.RedisDB)
		v.ValidateIf(err != nil, func() error {
			return validationError("REDIS_DB must be a number between 0 and 15")
		})
		if err == nil {
			v.RequireRange(db, 0, 15, "REDIS_DB")
		}

		poolSize, err := strconv.Atoi(c.RedisPoolSize)
		v.ValidateIf(err != nil, func() error {
			return validationError("REDIS_POOL_SIZE must be a positive number")
		})
		if err == nil {
			v.RequirePositive(poolSize, "REDIS_POOL_SIZE")
		}
	}

	v.ValidateIf(c.EncryptionKey != "", func() error {
		if len(c.EncryptionKey) != 32 {
			return validationError("CONFIG_ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
		}
		return nil
	})

	v.RequireOneOf(c.EmitterType, EmitterTypes, "EMITTER_TYPE")
	switch c.EmitterType {
	case EmitterRedis:
		v.RequireString(c.RedisAddress, "REDIS_ADDRESS")
	case EmitterGCP:
		v.RequireString(c.GCPProjectID, "GCP_PROJECT_ID")
	case EmitterRabbitMQ:
		v.RequireString(c.RabbitMQURL, "RABBITMQ_URL")
	case EmitterAWS:
		v.RequireString(c.AWSRegion, "AWS_REGION")
		v.ValidateIf(c.AWSQueueURL == "" && c.AWSTopicARN == "", func() error {
			return validationError("AWS_QUEUE_URL or AWS_TOPIC_ARN is required for the aws emitter")
		})
	case EmitterKafka:
		v.ValidateIf(len(c.KafkaBrokerList()) == 0, func() error {
			return validationError("KAFKA_BROKERS is required for the kafka emitter")
		})
	}

	return v.Error()
}

func portError(name, value string) error {
	if port, err := strconv.Atoi(value); err != nil || port < 1 || port > 65535 {
		return validationError(name + " must be a valid port number between 1 and 65535")
	}
	return nil
}

func validationError(msg string) error {
	return errors.ValidationError(msg)
}

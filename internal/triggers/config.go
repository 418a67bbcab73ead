package triggers

import (
	"net/url"
	"strings"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/validation"
)

// MaxTimerSeconds is the largest interval or delay a local timer accepts,
// the 32-bit millisecond ceiling (2^31-1 ms).
const MaxTimerSeconds = 2147483

// DefaultJobBody is sent by the remote scheduler when a trigger sets no body
const DefaultJobBody = `{"name":"Scheduled job executed via Google Cloud Scheduler"}`

// Mode is the active scheduling mode of a trigger
type Mode string

const (
	// ModeNone is a plain HTTP endpoint with no schedule
	ModeNone Mode = "none"
	// ModeCron is backed by a remote scheduler job
	ModeCron Mode = "cron"
	// ModeInterval fires a local periodic timer
	ModeInterval Mode = "interval"
	// ModeOnce fires a local one-shot timer
	ModeOnce Mode = "once"
)

// Config is the user-authored trigger configuration.
//
// It is handed to the reconciler by value on every create or edit and is
// never mutated after Normalize.
type Config struct {
	ID                    string `json:"id" validate:"required"`
	Name                  string `json:"name,omitempty"`
	URLPath               string `json:"urlPath" validate:"required,literal_path"`
	HTTPMethod            string `json:"httpMethod" validate:"required,http_method"`
	CronExpression        string `json:"cronExpression,omitempty" validate:"omitempty,cron"`
	FixedIntervalSeconds  int64  `json:"fixedIntervalSeconds,omitempty" validate:"gte=0,lte=2147483"`
	FireOnce              bool   `json:"fireOnce,omitempty"`
	OnceDelaySeconds      int64  `json:"onceDelaySeconds,omitempty" validate:"gte=0,lte=2147483"`
	RequiresUploadParsing bool   `json:"requiresUploadParsing,omitempty"`
	PubliclyAccessibleAck bool   `json:"publiclyAccessibleAck"`
	CredentialsRef        string `json:"credentialsRef,omitempty"`
	ParameterizedPath     bool   `json:"parameterizedPath,omitempty"`
	TimeZone              string `json:"timeZone,omitempty" validate:"omitempty,timezone"`
	Body                  string `json:"body,omitempty"`
}

// Normalize lower-cases the method and trims user input in place
func (c *Config) Normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.URLPath = strings.TrimSpace(c.URLPath)
	c.HTTPMethod = strings.ToLower(strings.TrimSpace(c.HTTPMethod))
	c.CronExpression = strings.TrimSpace(c.CronExpression)
	c.TimeZone = strings.TrimSpace(c.TimeZone)
	c.CredentialsRef = strings.TrimSpace(c.CredentialsRef)
}

// Mode derives the scheduling mode. Configurations with more than one
// active mode report ModeNone; Validate rejects them.
func (c Config) Mode() Mode {
	modes := c.activeModes()
	if len(modes) != 1 {
		return ModeNone
	}
	return modes[0]
}

func (c Config) activeModes() []Mode {
	var modes []Mode
	if c.CronExpression != "" {
		modes = append(modes, ModeCron)
	}
	if c.FixedIntervalSeconds > 0 {
		modes = append(modes, ModeInterval)
	}
	if c.FireOnce {
		modes = append(modes, ModeOnce)
	}
	return modes
}

// Remote reports whether the trigger is backed by a remote scheduler job
func (c Config) Remote() bool {
	return c.Mode() == ModeCron
}

// Method returns the upper-case HTTP method used for routing and job targets
func (c Config) Method() string {
	return strings.ToUpper(c.HTTPMethod)
}

// DisplayName returns Name, falling back to ID
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// JobBody returns the configured job body or the default one
func (c Config) JobBody() string {
	if c.Body != "" {
		return c.Body
	}
	return DefaultJobBody
}

// Validate checks the structural rules of a configuration: required fields,
// method, cron syntax, timer bounds and mutually exclusive scheduling modes.
// Every failure is a ConfigInvalid error.
func (c Config) Validate() error {
	result := validation.ValidateStructResult(c)
	if !result.Valid {
		return errors.ConfigInvalidError(strings.Join(result.Messages(), "; ")).
			WithContext("trigger_id", c.ID)
	}

	if modes := c.activeModes(); len(modes) > 1 {
		return errors.ConfigInvalidError("only one of cronExpression, fixedIntervalSeconds, fireOnce may be set").
			WithContext("trigger_id", c.ID)
	}

	return nil
}

// ValidateRemote checks the preconditions for creating a remote job
func (c Config) ValidateRemote() error {
	if !c.PubliclyAccessibleAck {
		return errors.ConfigInvalidError("the trigger URL must be acknowledged as publicly accessible").
			WithContext("trigger_id", c.ID)
	}
	if c.CredentialsRef == "" {
		return errors.ConfigInvalidError("missing scheduler credentials").
			WithContext("trigger_id", c.ID)
	}
	return nil
}

// IsAbsoluteURL reports whether URLPath carries its own scheme and host
func (c Config) IsAbsoluteURL() bool {
	u, err := url.Parse(c.URLPath)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

package triggers_test

import (
	"testing"

	apperrors "scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/triggers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cronConfig() triggers.Config {
	return triggers.Config{
		ID:                    "t1",
		URLPath:               "/hook",
		HTTPMethod:            "get",
		CronExpression:        "*/5 * * * *",
		PubliclyAccessibleAck: true,
		CredentialsRef:        "gcp",
	}
}

func TestConfig_Mode(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *triggers.Config)
		want   triggers.Mode
	}{
		{"cron", func(c *triggers.Config) {}, triggers.ModeCron},
		{"interval", func(c *triggers.Config) { c.CronExpression = ""; c.FixedIntervalSeconds = 60 }, triggers.ModeInterval},
		{"once", func(c *triggers.Config) { c.CronExpression = ""; c.FireOnce = true }, triggers.ModeOnce},
		{"plain http", func(c *triggers.Config) { c.CronExpression = "" }, triggers.ModeNone},
		{"ambiguous", func(c *triggers.Config) { c.FireOnce = true }, triggers.ModeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cronConfig()
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, cfg.Mode())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *triggers.Config)
		wantErr string
	}{
		{"valid cron", func(c *triggers.Config) {}, ""},
		{"valid interval", func(c *triggers.Config) { c.CronExpression = ""; c.FixedIntervalSeconds = 2147483 }, ""},
		{"missing path", func(c *triggers.Config) { c.URLPath = "" }, "urlPath"},
		{"missing method", func(c *triggers.Config) { c.HTTPMethod = "" }, "httpMethod"},
		{"bad method", func(c *triggers.Config) { c.HTTPMethod = "options" }, "httpMethod"},
		{"bad cron", func(c *triggers.Config) { c.CronExpression = "every minute" }, "cronExpression"},
		{"interval above ceiling", func(c *triggers.Config) { c.CronExpression = ""; c.FixedIntervalSeconds = 3000000000 }, "fixedIntervalSeconds"},
		{"delay above ceiling", func(c *triggers.Config) { c.CronExpression = ""; c.FireOnce = true; c.OnceDelaySeconds = 2147484 }, "onceDelaySeconds"},
		{"two modes", func(c *triggers.Config) { c.FixedIntervalSeconds = 10 }, "only one of"},
		{"bad timezone", func(c *triggers.Config) { c.TimeZone = "Nowhere/Land" }, "timeZone"},
		{"path variable", func(c *triggers.Config) { c.URLPath = "/hook/{name}" }, "literal path"},
		{"unbalanced brace", func(c *triggers.Config) { c.URLPath = "/a{b" }, "literal path"},
		{"cron descriptor", func(c *triggers.Config) { c.CronExpression = "@every 5m" }, "cronExpression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cronConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateRemote(t *testing.T) {
	cfg := cronConfig()
	assert.NoError(t, cfg.ValidateRemote())

	cfg.PubliclyAccessibleAck = false
	err := cfg.ValidateRemote()
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfigInvalid))

	cfg = cronConfig()
	cfg.CredentialsRef = ""
	assert.ErrorContains(t, cfg.ValidateRemote(), "missing scheduler credentials")
}

func TestConfig_Helpers(t *testing.T) {
	cfg := triggers.Config{ID: " t1 ", HTTPMethod: " Post ", URLPath: " /hook "}
	cfg.Normalize()

	assert.Equal(t, "t1", cfg.ID)
	assert.Equal(t, "post", cfg.HTTPMethod)
	assert.Equal(t, "POST", cfg.Method())
	assert.Equal(t, "/hook", cfg.URLPath)
	assert.Equal(t, "t1", cfg.DisplayName())
	assert.Equal(t, triggers.DefaultJobBody, cfg.JobBody())
	assert.False(t, cfg.IsAbsoluteURL())

	cfg.URLPath = "https://example.com/hook"
	assert.True(t, cfg.IsAbsoluteURL())
}

// Package jobspec derives the remote scheduler job for a trigger.
//
// Build is pure: the same configuration and target always produce the same
// descriptor, and the job name depends only on project, location and
// trigger id. Reconciliation relies on that to update a job in place
// instead of creating a new one on every redeploy.
package jobspec

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/routing"
	"scheduler-webhook/internal/triggers"

	"github.com/robfig/cron/v3"
)

var invalidIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// maxJobIDLength is the longest job id the scheduler accepts
const maxJobIDLength = 500

// Target carries the environment a descriptor is rendered for
type Target struct {
	ProjectID string
	Location  string
	// BaseURL prefixes relative trigger paths to form the job's target URI
	BaseURL string
	// TimeZone is used when the trigger sets none
	TimeZone string
}

// Descriptor is the desired remote job for one trigger
type Descriptor struct {
	JobName    string
	Parent     string
	TargetURI  string
	HTTPMethod string
	Body       []byte
	Schedule   string
	TimeZone   string
}

// SanitizeID maps a trigger id onto the scheduler's job id alphabet
func SanitizeID(id string) string {
	clean := invalidIDChars.ReplaceAllString(id, "_")
	if len(clean) > maxJobIDLength {
		clean = clean[:maxJobIDLength]
	}
	return clean
}

// LocationPath returns projects/{project}/locations/{location}
func LocationPath(project, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s", project, location)
}

// JobName returns projects/{project}/locations/{location}/jobs/{id}
func JobName(project, location, triggerID string) string {
	return fmt.Sprintf("%s/jobs/%s", LocationPath(project, location), SanitizeID(triggerID))
}

// Build renders the descriptor for cfg. It fails with ConfigInvalid rather
// than returning a partial descriptor.
func Build(cfg triggers.Config, target Target) (*Descriptor, error) {
	if cfg.ID == "" {
		return nil, errors.ConfigInvalidError("trigger id is required")
	}
	if strings.TrimSpace(cfg.URLPath) == "" {
		return nil, errors.ConfigInvalidError("urlPath is required").WithContext("trigger_id", cfg.ID)
	}
	if strings.TrimSpace(cfg.HTTPMethod) == "" {
		return nil, errors.ConfigInvalidError("httpMethod is required").WithContext("trigger_id", cfg.ID)
	}
	if cfg.CronExpression == "" {
		return nil, errors.ConfigInvalidError("cronExpression is required for cron triggers").WithContext("trigger_id", cfg.ID)
	}
	if target.ProjectID == "" || target.Location == "" {
		return nil, errors.ConfigInvalidError("scheduler project and location are required").WithContext("trigger_id", cfg.ID)
	}

	uri, err := TargetURI(cfg, target.BaseURL)
	if err != nil {
		return nil, err
	}

	desc := &Descriptor{
		JobName:    JobName(target.ProjectID, target.Location, cfg.ID),
		Parent:     LocationPath(target.ProjectID, target.Location),
		TargetURI:  uri,
		HTTPMethod: cfg.Method(),
		Schedule:   cfg.CronExpression,
		TimeZone:   timeZone(cfg, target),
	}
	if acceptsBody(desc.HTTPMethod) {
		desc.Body = []byte(cfg.JobBody())
	}
	return desc, nil
}

// TargetURI resolves the URL the scheduler calls. Absolute trigger URLs are
// used as given; relative paths are joined to baseURL. Parameterized
// triggers append the trigger id as the final segment.
func TargetURI(cfg triggers.Config, baseURL string) (string, error) {
	var u *url.URL
	if cfg.IsAbsoluteURL() {
		parsed, err := url.Parse(cfg.URLPath)
		if err != nil {
			return "", errors.ConfigInvalidError(fmt.Sprintf("invalid urlPath: %v", err))
		}
		u = parsed
	} else {
		if baseURL == "" {
			return "", errors.ConfigInvalidError("urlPath is relative and no public base URL is configured").
				WithContext("trigger_id", cfg.ID)
		}
		base, err := url.Parse(baseURL)
		if err != nil || base.Host == "" {
			return "", errors.ConfigInvalidError(fmt.Sprintf("invalid public base URL %q", baseURL))
		}
		base.Path = strings.TrimSuffix(base.Path, "/") + routing.NormalizePath(cfg.URLPath)
		u = base
	}

	if isLocalhost(u.Hostname()) {
		return "", errors.ConfigInvalidError("Localhost is not supported").WithContext("trigger_id", cfg.ID)
	}

	if cfg.ParameterizedPath {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(cfg.ID)
	}
	return u.String(), nil
}

// RoutePattern returns the local route pattern serving cfg
func RoutePattern(cfg triggers.Config) string {
	if cfg.ParameterizedPath {
		return routing.ParamPattern(cfg.URLPath)
	}
	return routing.NormalizePath(cfg.URLPath)
}

// NextFire previews the next time schedule fires after the given instant
func NextFire(schedule, tz string, after time.Time) (time.Time, error) {
	spec := schedule
	if tz != "" && !strings.HasPrefix(schedule, "CRON_TZ=") && !strings.HasPrefix(schedule, "TZ=") {
		spec = "CRON_TZ=" + tz + " " + schedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, errors.ConfigInvalidError(fmt.Sprintf("invalid cron expression %q: %v", schedule, err))
	}
	return sched.Next(after), nil
}

func timeZone(cfg triggers.Config, target Target) string {
	if cfg.TimeZone != "" {
		return cfg.TimeZone
	}
	if target.TimeZone != "" {
		return target.TimeZone
	}
	return "UTC"
}

func acceptsBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

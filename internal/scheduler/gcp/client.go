// Package gcp implements scheduler.Client on Google Cloud Scheduler.
package gcp

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"strconv"
	"sync"

	"google.golang.org/api/cloudscheduler/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/scheduler"
)

// updateMask lists the job fields reconciliation owns.
const updateMask = "schedule,timeZone,httpTarget"

// Config tunes clients built by Factory.
type Config struct {
	// Location pins jobs to a location id. Empty means the first location
	// the project lists.
	Location string
	// Options are appended to every client, e.g. an endpoint override.
	Options []option.ClientOption
}

// Client talks to one project. The resolved location is cached for the
// client's lifetime.
type Client struct {
	svc      *cloudscheduler.Service
	project  string
	pinned   string
	mu       sync.Mutex
	location string
}

// New creates a client for project. opts carry credentials or endpoint
// overrides.
func New(ctx context.Context, project string, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if project == "" {
		return nil, errors.ConfigError("project id is required")
	}
	all := append(append([]option.ClientOption{}, opts...), cfg.Options...)
	svc, err := cloudscheduler.NewService(ctx, all...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create cloud scheduler service", err)
	}
	return &Client{svc: svc, project: project, pinned: cfg.Location}, nil
}

// Factory builds clients from service account keys.
func Factory(cfg Config) scheduler.ProviderFunc {
	return func(ctx context.Context, creds *credentials.Credentials) (scheduler.Client, error) {
		var opts []option.ClientOption
		if len(creds.JSON) > 0 {
			opts = append(opts, option.WithCredentialsJSON(creds.JSON))
		}
		return New(ctx, creds.ProjectID, cfg, opts...)
	}
}

func (c *Client) ProjectID() string { return c.project }

func (c *Client) ResolveLocation(ctx context.Context) (string, error) {
	if c.pinned != "" {
		return c.pinned, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.location != "" {
		return c.location, nil
	}

	resp, err := c.svc.Projects.Locations.List("projects/" + c.project).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	for _, loc := range resp.Locations {
		if loc.LocationId != "" {
			c.location = loc.LocationId
			return c.location, nil
		}
	}
	return "", errors.NotFoundError("scheduler location").WithContext("project_id", c.project)
}

func (c *Client) GetJob(ctx context.Context, name string) (*scheduler.Job, error) {
	job, err := c.svc.Projects.Locations.Jobs.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return fromAPI(job)
}

func (c *Client) CreateJob(ctx context.Context, parent string, job *scheduler.Job) (*scheduler.Job, error) {
	created, err := c.svc.Projects.Locations.Jobs.Create(parent, toAPI(job)).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return fromAPI(created)
}

func (c *Client) UpdateJob(ctx context.Context, job *scheduler.Job) (*scheduler.Job, error) {
	updated, err := c.svc.Projects.Locations.Jobs.Patch(job.Name, toAPI(job)).
		UpdateMask(updateMask).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return fromAPI(updated)
}

func (c *Client) DeleteJob(ctx context.Context, name string) error {
	_, err := c.svc.Projects.Locations.Jobs.Delete(name).Context(ctx).Do()
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !stderrors.As(err, &apiErr) {
		return err
	}
	if apiErr.Code == http.StatusNotFound {
		return scheduler.ErrJobNotFound
	}
	return errors.RemoteCallError("cloud scheduler", err).WithCode(strconv.Itoa(apiErr.Code))
}

func toAPI(job *scheduler.Job) *cloudscheduler.Job {
	target := &cloudscheduler.HttpTarget{
		Uri:        job.TargetURI,
		HttpMethod: job.HTTPMethod,
	}
	if len(job.Body) > 0 {
		target.Body = base64.StdEncoding.EncodeToString(job.Body)
	}
	return &cloudscheduler.Job{
		Name:       job.Name,
		Schedule:   job.Schedule,
		TimeZone:   job.TimeZone,
		HttpTarget: target,
	}
}

func fromAPI(job *cloudscheduler.Job) (*scheduler.Job, error) {
	out := &scheduler.Job{
		Name:     job.Name,
		Schedule: job.Schedule,
		TimeZone: job.TimeZone,
		State:    job.State,
	}
	if t := job.HttpTarget; t != nil {
		out.TargetURI = t.Uri
		out.HTTPMethod = t.HttpMethod
		if t.Body != "" {
			body, err := base64.StdEncoding.DecodeString(t.Body)
			if err != nil {
				return nil, errors.InternalError("invalid job body encoding", err).WithContext("job", job.Name)
			}
			out.Body = body
		}
	}
	return out, nil
}

var _ scheduler.Client = (*Client)(nil)

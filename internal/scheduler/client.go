// Package scheduler is the boundary to the external cron service that calls
// trigger endpoints. The service is the system of record for remote jobs:
// nothing here caches job state between calls.
package scheduler

import (
	"bytes"
	"context"
	stderrors "errors"

	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/jobspec"
)

// ErrJobNotFound is returned by GetJob and DeleteJob for an absent job.
var ErrJobNotFound = stderrors.New("scheduler job not found")

// Job is the remote representation of a scheduled HTTP call.
type Job struct {
	Name       string
	Schedule   string
	TimeZone   string
	TargetURI  string
	HTTPMethod string
	Body       []byte
	State      string
}

// JobFromDescriptor converts a desired descriptor into a Job.
func JobFromDescriptor(d *jobspec.Descriptor) *Job {
	return &Job{
		Name:       d.JobName,
		Schedule:   d.Schedule,
		TimeZone:   d.TimeZone,
		TargetURI:  d.TargetURI,
		HTTPMethod: d.HTTPMethod,
		Body:       append([]byte(nil), d.Body...),
	}
}

// Client is the set of scheduler operations reconciliation needs. Each call
// is independently failable.
type Client interface {
	// ProjectID is the project the client's credentials belong to.
	ProjectID() string
	// ResolveLocation returns the location id jobs are created in.
	ResolveLocation(ctx context.Context) (string, error)
	GetJob(ctx context.Context, name string) (*Job, error)
	CreateJob(ctx context.Context, parent string, job *Job) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) (*Job, error)
	DeleteJob(ctx context.Context, name string) error
}

// Provider returns the client for a set of credentials.
type Provider interface {
	Client(ctx context.Context, creds *credentials.Credentials) (Client, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, creds *credentials.Credentials) (Client, error)

func (f ProviderFunc) Client(ctx context.Context, creds *credentials.Credentials) (Client, error) {
	return f(ctx, creds)
}

// RemoteState is the observed state of a remote job.
type RemoteState int

const (
	Absent RemoteState = iota
	Matches
	Diverges
)

func (s RemoteState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Matches:
		return "matches"
	case Diverges:
		return "diverges"
	default:
		return "unknown"
	}
}

// Observe queries the job named by desired and classifies it. A NotFound
// answer is Absent, not an error.
func Observe(ctx context.Context, client Client, desired *Job) (RemoteState, *Job, error) {
	current, err := client.GetJob(ctx, desired.Name)
	if stderrors.Is(err, ErrJobNotFound) {
		return Absent, nil, nil
	}
	if err != nil {
		return Absent, nil, err
	}
	if Equivalent(current, desired) {
		return Matches, current, nil
	}
	return Diverges, current, nil
}

// Equivalent compares the fields reconciliation controls.
func Equivalent(a, b *Job) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name &&
		a.Schedule == b.Schedule &&
		a.TimeZone == b.TimeZone &&
		a.TargetURI == b.TargetURI &&
		a.HTTPMethod == b.HTTPMethod &&
		bytes.Equal(a.Body, b.Body)
}

package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call records one operation received by a MemoryClient.
type Call struct {
	Op   string
	Name string
}

// MemoryClient is an in-process scheduler used by tests and by the
// "memory" scheduler backend. It is safe for concurrent use.
type MemoryClient struct {
	Project  string
	Location string

	mu       sync.Mutex
	jobs     map[string]*Job
	calls    []Call
	failures map[string]error
}

func NewMemoryClient(project, location string) *MemoryClient {
	return &MemoryClient{
		Project:  project,
		Location: location,
		jobs:     make(map[string]*Job),
		failures: make(map[string]error),
	}
}

// FailOn makes every call of op ("get", "create", "update", "delete",
// "locations") return err until cleared with a nil err.
func (m *MemoryClient) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns the operations received so far.
func (m *MemoryClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CountCalls returns how many calls of op were received.
func (m *MemoryClient) CountCalls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Jobs returns a copy of the stored jobs keyed by name.
func (m *MemoryClient) Jobs() map[string]*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Job, len(m.jobs))
	for k, v := range m.jobs {
		j := *v
		out[k] = &j
	}
	return out
}

// Put stores a job directly, bypassing the call log.
func (m *MemoryClient) Put(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := *job
	m.jobs[job.Name] = &j
}

func (m *MemoryClient) record(op, name string) error {
	m.calls = append(m.calls, Call{Op: op, Name: name})
	return m.failures[op]
}

func (m *MemoryClient) ProjectID() string { return m.Project }

func (m *MemoryClient) ResolveLocation(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("locations", m.Project); err != nil {
		return "", err
	}
	if m.Location == "" {
		return "", fmt.Errorf("project %s has no locations", m.Project)
	}
	return m.Location, nil
}

func (m *MemoryClient) GetJob(ctx context.Context, name string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get", name); err != nil {
		return nil, err
	}
	job, ok := m.jobs[name]
	if !ok {
		return nil, ErrJobNotFound
	}
	j := *job
	return &j, nil
}

func (m *MemoryClient) CreateJob(ctx context.Context, parent string, job *Job) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create", job.Name); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(job.Name, parent+"/jobs/") {
		return nil, fmt.Errorf("job %s is not under %s", job.Name, parent)
	}
	if _, exists := m.jobs[job.Name]; exists {
		return nil, fmt.Errorf("job %s already exists", job.Name)
	}
	j := *job
	j.State = "ENABLED"
	m.jobs[job.Name] = &j
	out := j
	return &out, nil
}

func (m *MemoryClient) UpdateJob(ctx context.Context, job *Job) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update", job.Name); err != nil {
		return nil, err
	}
	if _, exists := m.jobs[job.Name]; !exists {
		return nil, ErrJobNotFound
	}
	j := *job
	j.State = "ENABLED"
	m.jobs[job.Name] = &j
	out := j
	return &out, nil
}

func (m *MemoryClient) DeleteJob(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("delete", name); err != nil {
		return err
	}
	if _, exists := m.jobs[name]; !exists {
		return ErrJobNotFound
	}
	delete(m.jobs, name)
	return nil
}

var _ Client = (*MemoryClient)(nil)

package scheduler

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"scheduler-webhook/internal/circuitbreaker"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/credentials"
)

// BreakerClient runs every call of an inner client through a circuit
// breaker. Failures other than ErrJobNotFound come back as
// remote_call_failed errors.
type BreakerClient struct {
	inner   Client
	breaker *circuitbreaker.GoBreakerAdapter
}

func NewBreakerClient(inner Client, breaker *circuitbreaker.GoBreakerAdapter) *BreakerClient {
	return &BreakerClient{inner: inner, breaker: breaker}
}

// IgnoreNotFound keeps NotFound answers from tripping a breaker.
func IgnoreNotFound(err error) bool {
	return stderrors.Is(err, ErrJobNotFound)
}

func (b *BreakerClient) call(ctx context.Context, op string, fn func() error) error {
	err := b.breaker.Execute(ctx, fn)
	if err == nil || stderrors.Is(err, ErrJobNotFound) {
		return err
	}
	if errors.IsType(err, errors.ErrTypeRemoteCall) {
		return err
	}
	return errors.RemoteCallError(op, err).WithContext("breaker", b.breaker.Name())
}

func (b *BreakerClient) ProjectID() string { return b.inner.ProjectID() }

func (b *BreakerClient) ResolveLocation(ctx context.Context) (string, error) {
	var loc string
	err := b.call(ctx, "list locations", func() error {
		var err error
		loc, err = b.inner.ResolveLocation(ctx)
		return err
	})
	return loc, err
}

func (b *BreakerClient) GetJob(ctx context.Context, name string) (*Job, error) {
	var job *Job
	err := b.call(ctx, "get job", func() error {
		var err error
		job, err = b.inner.GetJob(ctx, name)
		return err
	})
	return job, err
}

func (b *BreakerClient) CreateJob(ctx context.Context, parent string, job *Job) (*Job, error) {
	var created *Job
	err := b.call(ctx, "create job", func() error {
		var err error
		created, err = b.inner.CreateJob(ctx, parent, job)
		return err
	})
	return created, err
}

func (b *BreakerClient) UpdateJob(ctx context.Context, job *Job) (*Job, error) {
	var updated *Job
	err := b.call(ctx, "update job", func() error {
		var err error
		updated, err = b.inner.UpdateJob(ctx, job)
		return err
	})
	return updated, err
}

func (b *BreakerClient) DeleteJob(ctx context.Context, name string) error {
	return b.call(ctx, "delete job", func() error {
		return b.inner.DeleteJob(ctx, name)
	})
}

// CachingProvider builds one breaker-wrapped client per credentials
// reference and project and reuses it.
type CachingProvider struct {
	factory  ProviderFunc
	breakers *circuitbreaker.GoBreakerManager
	logger   logging.Logger

	mu      sync.Mutex
	clients map[string]Client
}

func NewCachingProvider(factory ProviderFunc, breakers *circuitbreaker.GoBreakerManager, logger logging.Logger) *CachingProvider {
	return &CachingProvider{
		factory:  factory,
		breakers: breakers,
		logger:   logger,
		clients:  make(map[string]Client),
	}
}

func (p *CachingProvider) Client(ctx context.Context, creds *credentials.Credentials) (Client, error) {
	key := creds.Ref + "|" + creds.ProjectID

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	inner, err := p.factory(ctx, creds)
	if err != nil {
		return nil, errors.CredentialsError(creds.Ref, err)
	}

	c := NewBreakerClient(inner, p.breakers.GetOrCreate("scheduler:"+key))
	p.clients[key] = c
	p.logger.Info("Created scheduler client",
		logging.Field{Key: "credentials_ref", Value: creds.Ref},
		logging.Field{Key: "project_id", Value: creds.ProjectID})
	return c, nil
}

// Forget drops the cached client for a reference so the next call rebuilds
// it, for example after its key was replaced.
func (p *CachingProvider) Forget(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.clients {
		if strings.HasPrefix(key, ref+"|") {
			delete(p.clients, key)
			p.breakers.Remove("scheduler:" + key)
		}
	}
}

package manager_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler-webhook/internal/bodyparser"
	apperrors "scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/credentials"
	"scheduler-webhook/internal/jobspec"
	"scheduler-webhook/internal/reconciler"
	"scheduler-webhook/internal/routing"
	"scheduler-webhook/internal/scheduler"
	"scheduler-webhook/internal/storage/sqlite"
	"scheduler-webhook/internal/triggers"
	"scheduler-webhook/internal/triggers/manager"
)

type sink struct {
	mu     sync.Mutex
	events []*triggers.ActivationEvent
}

func (s *sink) Emit(_ context.Context, e *triggers.ActivationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fixture struct {
	store  *sqlite.Adapter
	table  *routing.Table
	client *scheduler.MemoryClient
	sink   *sink
	deps   reconciler.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.NewAdapter(&sqlite.Config{DatabasePath: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logs := logging.NewRecorder()
	f := &fixture{
		store:  store,
		table:  routing.NewTable(logs),
		client: scheduler.NewMemoryClient("demo", "us-central1"),
		sink:   &sink{},
	}
	creds := credentials.NewStaticResolver()
	creds.Put("sa", &credentials.Credentials{ProjectID: "demo"})
	f.deps = reconciler.Deps{
		Credentials: creds,
		Routes:      f.table,
		Schedulers: scheduler.ProviderFunc(func(context.Context, *credentials.Credentials) (scheduler.Client, error) {
			return f.client, nil
		}),
		Emitter:   f.sink,
		Logger:    logs,
		Target:    jobspec.Target{BaseURL: "https://hooks.example.com"},
		TimerUnit: 10 * time.Millisecond,
	}
	return f
}

func (f *fixture) manager() *manager.Manager {
	return manager.NewManager(f.store, f.deps, bodyparser.NewDecoder(0))
}

func cronTrigger(id string) triggers.Config {
	return triggers.Config{
		ID:                    id,
		HTTPMethod:            "POST",
		URLPath:               "/hooks/" + id,
		CronExpression:        "*/5 * * * *",
		PubliclyAccessibleAck: true,
		CredentialsRef:        "sa",
	}
}

func TestApply_CreatesPersistsAndServes(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	node, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)
	assert.Equal(t, reconciler.StateConverged, node.Status().State)

	record, err := f.store.GetTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "post", record.Config.HTTPMethod)
	assert.Len(t, f.client.Jobs(), 1)

	rec := httptest.NewRecorder()
	f.table.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/t1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.sink.count())
}

func TestApply_GeneratesID(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	cfg := cronTrigger("")
	cfg.URLPath = "/generated"
	node, err := m.Apply(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, node.ID())

	got, ok := m.Get(node.ID())
	require.True(t, ok)
	assert.Same(t, node, got)
}

func TestApply_UpdateReusesNode(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	first, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)

	edited := cronTrigger("t1")
	edited.URLPath = "/moved"
	second, err := m.Apply(ctx, edited)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, f.client.Jobs(), 1)
	assert.Len(t, m.List(), 1)

	record, err := f.store.GetTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "/moved", record.Config.URLPath)
}

func TestApply_InvalidConfigIsNotStored(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	cfg := cronTrigger("bad")
	cfg.FixedIntervalSeconds = 10
	_, err := m.Apply(ctx, cfg)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfigInvalid))

	_, err = f.store.GetTrigger(ctx, "bad")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	assert.Empty(t, m.List())
}

func TestApply_PassFailureStillDeploys(t *testing.T) {
	f := newFixture(t)
	m := f.manager()

	f.client.FailOn("create", errors.New("quota exceeded"))
	node, err := m.Apply(context.Background(), cronTrigger("t1"))
	require.Error(t, err)
	require.NotNil(t, node)
	assert.Equal(t, reconciler.StateSyncing, node.Status().State)
	assert.Len(t, m.List(), 1)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	_, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)

	require.NoError(t, m.Remove(ctx, "t1"))
	assert.Empty(t, f.client.Jobs())
	assert.Empty(t, f.table.Entries())
	_, ok := m.Get("t1")
	assert.False(t, ok)

	_, err = f.store.GetTrigger(ctx, "t1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	assert.ErrorIs(t, m.Remove(ctx, "t1"), triggers.ErrTriggerNotFound)
}

func TestRemove_RemoteFailureStillRemoves(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	_, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)

	f.client.FailOn("delete", errors.New("unavailable"))
	err = m.Remove(ctx, "t1")
	require.Error(t, err)

	_, ok := m.Get("t1")
	assert.False(t, ok)
	_, err = f.store.GetTrigger(ctx, "t1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestRedeploy_AdoptsRemoteJob(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	old, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)
	creates := f.client.CountCalls("create")

	node, err := m.Redeploy(ctx, "t1")
	require.NoError(t, err)
	assert.NotSame(t, old, node)
	assert.True(t, old.Status().Closed)
	assert.Equal(t, reconciler.StateConverged, node.Status().State)
	assert.Equal(t, creates, f.client.CountCalls("create"))
	assert.Len(t, f.table.Entries(), 1)

	_, err = m.Redeploy(ctx, "missing")
	assert.ErrorIs(t, err, triggers.ErrTriggerNotFound)
}

func TestInject(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	cfg := triggers.Config{ID: "manual", HTTPMethod: "post", URLPath: "/manual"}
	_, err := m.Apply(ctx, cfg)
	require.NoError(t, err)

	msgID, err := m.Inject(ctx, "manual", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)
	assert.Equal(t, 1, f.sink.count())

	_, err = m.Inject(ctx, "nope", nil)
	assert.ErrorIs(t, err, triggers.ErrTriggerNotFound)
}

func TestLoadAll_RestoresStoredTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveTrigger(ctx, cronTrigger("a")))
	require.NoError(t, f.store.SaveTrigger(ctx, triggers.Config{ID: "b", HTTPMethod: "get", URLPath: "/b"}))

	m := f.manager()
	n, err := m.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	nodes := m.List()
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID())
	assert.Equal(t, "b", nodes[1].ID())
	assert.Len(t, f.table.Entries(), 2)
}

func TestShutdown_KeepsRemoteJobs(t *testing.T) {
	f := newFixture(t)
	m := f.manager()
	ctx := context.Background()

	_, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)

	m.Shutdown(ctx)
	assert.Empty(t, f.table.Entries())
	assert.Len(t, f.client.Jobs(), 1)
	assert.Empty(t, m.List())

	_, err = m.Apply(ctx, cronTrigger("t2"))
	assert.ErrorIs(t, err, manager.ErrShutdown)

	// the next process adopts the job
	next := f.manager()
	_, err = next.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, f.client.Jobs(), 1)
}

func TestRefreshCredentials_RetriesHaltedTriggers(t *testing.T) {
	f := newFixture(t)
	creds := credentials.NewStaticResolver()
	f.deps.Credentials = creds
	m := f.manager()
	ctx := context.Background()

	node, err := m.Apply(ctx, cronTrigger("t1"))
	require.Error(t, err)
	assert.Equal(t, reconciler.StateUnconfigured, node.Status().State)

	creds.Put("sa", &credentials.Credentials{ProjectID: "demo"})
	ids := m.RefreshCredentials(ctx, "sa")
	assert.Equal(t, []string{"t1"}, ids)
	assert.Equal(t, reconciler.StateConverged, node.Status().State)
	assert.Empty(t, m.RefreshCredentials(ctx, "other"))
}

// gatedClient holds the next GetJob after arm until open is called
type gatedClient struct {
	*scheduler.MemoryClient

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	gate    chan struct{}
}

func newGatedClient(inner *scheduler.MemoryClient) *gatedClient {
	return &gatedClient{MemoryClient: inner}
}

func (g *gatedClient) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
	g.entered = make(chan struct{})
	g.gate = make(chan struct{})
}

func (g *gatedClient) open() { close(g.gate) }

func (g *gatedClient) GetJob(ctx context.Context, name string) (*scheduler.Job, error) {
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	entered, gate := g.entered, g.gate
	g.mu.Unlock()

	if armed {
		close(entered)
		<-gate
	}
	return g.MemoryClient.GetJob(ctx, name)
}

func (f *fixture) gated() *gatedClient {
	g := newGatedClient(f.client)
	f.deps.Schedulers = scheduler.ProviderFunc(func(context.Context, *credentials.Credentials) (scheduler.Client, error) {
		return g, nil
	})
	return g
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestRemove_ConcurrentApplyOfSameIDRunsAfterRemoval(t *testing.T) {
	f := newFixture(t)
	g := f.gated()
	m := f.manager()
	ctx := context.Background()

	_, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)

	g.arm()
	removed := make(chan error, 1)
	go func() { removed <- m.Remove(ctx, "t1") }()
	waitClosed(t, g.entered)

	applied := make(chan struct{})
	var node interface{ Status() reconciler.Status }
	var applyErr error
	go func() {
		defer close(applied)
		n, err := m.Apply(ctx, cronTrigger("t1"))
		node, applyErr = n, err
	}()

	select {
	case <-applied:
		t.Fatal("apply ran while removal of the same id was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	g.open()
	require.NoError(t, <-removed)
	waitClosed(t, applied)

	require.NoError(t, applyErr)
	assert.Equal(t, reconciler.StateConverged, node.Status().State)
	assert.Len(t, f.client.Jobs(), 1)
	assert.Len(t, f.table.OwnedBy("t1"), 1)

	_, err = f.store.GetTrigger(ctx, "t1")
	assert.NoError(t, err)
}

func TestRedeploy_WaitsForInFlightPass(t *testing.T) {
	f := newFixture(t)
	g := f.gated()
	m := f.manager()
	ctx := context.Background()

	_, err := m.Apply(ctx, cronTrigger("t1"))
	require.NoError(t, err)

	edited := cronTrigger("t1")
	edited.URLPath = "/hooks/t1-edited"

	g.arm()
	applied := make(chan error, 1)
	go func() {
		_, err := m.Apply(ctx, edited)
		applied <- err
	}()
	waitClosed(t, g.entered)

	redeployed := make(chan struct{})
	go func() {
		defer close(redeployed)
		_, _ = m.Redeploy(ctx, "t1")
	}()

	select {
	case <-redeployed:
		t.Fatal("redeploy ran while a pass of the same id was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	g.open()
	require.NoError(t, <-applied)
	waitClosed(t, redeployed)

	node, ok := m.Get("t1")
	require.True(t, ok)
	assert.Equal(t, reconciler.StateConverged, node.Status().State)
	assert.Equal(t, "/hooks/t1-edited", node.Config().URLPath)
	assert.Equal(t, 1, f.client.CountCalls("create"))
	assert.Len(t, f.client.Jobs(), 1)

	entries := f.table.OwnedBy("t1")
	require.Len(t, entries, 1)
	assert.Equal(t, "/hooks/t1-edited", entries[0].Pattern)
}

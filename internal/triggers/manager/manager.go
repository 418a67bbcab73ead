// Package manager keeps the set of deployed trigger nodes. It persists each
// configuration, drives the node lifecycle on create, edit, redeploy and
// removal, and restores every stored trigger at boot.
package manager

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/lucsky/cuid"

	"scheduler-webhook/internal/bodyparser"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/common/logging"
	"scheduler-webhook/internal/locks"
	"scheduler-webhook/internal/reconciler"
	"scheduler-webhook/internal/storage"
	"scheduler-webhook/internal/triggers"
	"scheduler-webhook/internal/triggers/webhook"
)

// ErrShutdown is returned by operations on a manager that has shut down
var ErrShutdown = stderrors.New("trigger manager is shut down")

// Store is the part of storage the manager persists configurations through
type Store interface {
	SaveTrigger(ctx context.Context, cfg triggers.Config) error
	ListTriggers(ctx context.Context) ([]*storage.TriggerRecord, error)
	DeleteTrigger(ctx context.Context, id string) error
}

// Manager manages all trigger nodes in the process. Operations on the same
// trigger id run one at a time, across node instances of that id.
type Manager struct {
	store   Store
	deps    reconciler.Deps
	decoder *bodyparser.Decoder
	guards  *locks.LocalManager
	logger  logging.Logger

	mu     sync.RWMutex
	nodes  map[string]*webhook.Node
	closed bool
}

func NewManager(store Store, deps reconciler.Deps, decoder *bodyparser.Decoder) *Manager {
	if deps.Logger == nil {
		deps.Logger = logging.GetGlobalLogger()
	}
	if deps.Locks == nil {
		deps.Locks = locks.NewLocalManager()
	}
	return &Manager{
		store:   store,
		deps:    deps,
		decoder: decoder,
		guards:  locks.NewLocalManager(),
		logger:  deps.Logger.WithFields(logging.Field{Key: "component", Value: "trigger_manager"}),
		nodes:   make(map[string]*webhook.Node),
	}
}

// guard holds the per-id lock. Callers release it with release.
func (m *Manager) guard(ctx context.Context, id string) (locks.Lock, error) {
	return m.guards.AcquireLock(ctx, "trigger:"+id, 0)
}

func release(lock locks.Lock) {
	_ = lock.Release(context.Background())
}

// NewID returns a fresh trigger id
func NewID() string {
	return cuid.New()
}

// Apply validates and persists cfg, then creates its node or reconciles the
// existing one. A configuration that fails structural validation is
// rejected before anything is stored and the running node is left alone.
// Otherwise the node is returned together with the outcome of its pass.
func (m *Manager) Apply(ctx context.Context, cfg triggers.Config) (*webhook.Node, error) {
	cfg.Normalize()
	if cfg.ID == "" {
		cfg.ID = NewID()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m.isClosed() {
		return nil, ErrShutdown
	}

	lock, err := m.guard(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	defer release(lock)

	if m.isClosed() {
		return nil, ErrShutdown
	}
	if m.store != nil {
		if err := m.store.SaveTrigger(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return m.deploy(ctx, cfg)
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// deploy must be called with the guard of cfg.ID held
func (m *Manager) deploy(ctx context.Context, cfg triggers.Config) (*webhook.Node, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	node, exists := m.nodes[cfg.ID]
	if !exists {
		node = webhook.NewNode(cfg.ID, m.deps, m.decoder)
		m.nodes[cfg.ID] = node
	}
	m.mu.Unlock()

	if exists {
		return node, node.OnUpdate(ctx, cfg)
	}
	return node, node.OnCreate(ctx, cfg)
}

// Redeploy closes the node of id and starts a fresh one from its current
// configuration. The remote job survives the close and is adopted.
func (m *Manager) Redeploy(ctx context.Context, id string) (*webhook.Node, error) {
	lock, err := m.guard(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release(lock)

	m.mu.RLock()
	closed := m.closed
	old, ok := m.nodes[id]
	m.mu.RUnlock()
	if closed {
		return nil, ErrShutdown
	}
	if !ok {
		return nil, triggers.ErrTriggerNotFound
	}

	cfg := old.Config()
	<-old.OnClose(ctx, false)

	node := webhook.NewNode(id, m.deps, m.decoder)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.nodes[id] = node
	m.mu.Unlock()

	m.logger.Info("Trigger redeployed", logging.Field{Key: "trigger_id", Value: id})
	return node, node.OnCreate(ctx, cfg)
}

// Remove deletes the trigger for good. Routes and timers stop at once; the
// remote job and stored configuration are deleted afterwards. The trigger
// is gone even when remote deletion fails, and that failure is returned.
// A create of the same id waits until removal has finished.
func (m *Manager) Remove(ctx context.Context, id string) error {
	lock, err := m.guard(ctx, id)
	if err != nil {
		return err
	}
	defer release(lock)

	m.mu.Lock()
	node, ok := m.nodes[id]
	delete(m.nodes, id)
	m.mu.Unlock()

	var remoteErr error
	if ok {
		remoteErr = <-node.OnClose(ctx, true)
	}

	if m.store != nil {
		err := m.store.DeleteTrigger(ctx, id)
		switch {
		case errors.IsType(err, errors.ErrTypeNotFound):
			if !ok {
				return triggers.ErrTriggerNotFound
			}
		case err != nil:
			return err
		}
	} else if !ok {
		return triggers.ErrTriggerNotFound
	}

	if remoteErr != nil {
		m.logger.Warn("Trigger removed but its remote job could not be deleted",
			logging.Field{Key: "trigger_id", Value: id},
			logging.Err(remoteErr),
		)
	}
	return remoteErr
}

// Get returns the node of id
func (m *Manager) Get(id string) (*webhook.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.nodes[id]
	return node, ok
}

// List returns every node ordered by id
func (m *Manager) List() []*webhook.Node {
	m.mu.RLock()
	nodes := make([]*webhook.Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		nodes = append(nodes, node)
	}
	m.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// Inject fires the trigger manually
func (m *Manager) Inject(ctx context.Context, id string, payload interface{}) (string, error) {
	node, ok := m.Get(id)
	if !ok {
		return "", triggers.ErrTriggerNotFound
	}
	return node.Inject(ctx, payload)
}

// RefreshCredentials re-runs the pass of every trigger that uses ref, e.g.
// after its key was replaced. It returns the affected trigger ids.
func (m *Manager) RefreshCredentials(ctx context.Context, ref string) []string {
	var ids []string
	for _, node := range m.List() {
		cfg := node.Config()
		if cfg.CredentialsRef != ref {
			continue
		}
		ids = append(ids, cfg.ID)
		if err := m.refresh(ctx, node, cfg); err != nil {
			m.logger.Warn("Trigger did not converge after credentials change",
				logging.Field{Key: "trigger_id", Value: cfg.ID},
				logging.Field{Key: "credentials_ref", Value: ref},
				logging.Err(err),
			)
		}
	}
	return ids
}

func (m *Manager) refresh(ctx context.Context, node *webhook.Node, cfg triggers.Config) error {
	lock, err := m.guard(ctx, cfg.ID)
	if err != nil {
		return err
	}
	defer release(lock)

	// skip nodes replaced or removed while waiting
	if current, ok := m.Get(cfg.ID); !ok || current != node {
		return nil
	}
	return node.OnUpdate(ctx, node.Config())
}

func (m *Manager) load(ctx context.Context, cfg triggers.Config) error {
	lock, err := m.guard(ctx, cfg.ID)
	if err != nil {
		return err
	}
	defer release(lock)

	_, err = m.deploy(ctx, cfg)
	return err
}

// LoadAll deploys every stored configuration. A trigger whose pass fails is
// still deployed; the failure is logged and shows in its status.
func (m *Manager) LoadAll(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	records, err := m.store.ListTriggers(ctx)
	if err != nil {
		return 0, errors.InternalError("failed to load triggers", err)
	}

	for _, record := range records {
		if err := m.load(ctx, record.Config); err != nil {
			m.logger.Warn("Stored trigger did not converge",
				logging.Field{Key: "trigger_id", Value: record.Config.ID},
				logging.Err(err),
			)
		}
	}

	m.logger.Info("Triggers loaded", logging.Field{Key: "trigger_count", Value: len(records)})
	return len(records), nil
}

// Shutdown closes every node without deleting remote jobs, so the next
// process adopts them.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	nodes := m.nodes
	m.nodes = make(map[string]*webhook.Node)
	m.mu.Unlock()

	for id, node := range nodes {
		select {
		case <-node.OnClose(ctx, false):
		case <-ctx.Done():
			m.logger.Warn("Shutdown interrupted", logging.Field{Key: "trigger_id", Value: id})
			return
		}
	}
	m.logger.Info("Trigger manager stopped", logging.Field{Key: "trigger_count", Value: len(nodes)})
}

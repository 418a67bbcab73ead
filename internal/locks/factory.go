package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/redis"
)

// NewManager returns a Redlock manager when a Redis client is available and
// an in-process manager otherwise.
func NewManager(redisClient *redis.Client) (Manager, error) {
	if redisClient == nil {
		return NewLocalManager(), nil
	}
	return NewRedsyncManager(redisClient)
}

// LocalManager hands out per-key mutexes that only serialise callers inside
// one process. Expiration is ignored; a lock is held until released.
type LocalManager struct {
	mu   sync.Mutex
	keys map[string]*localKey
}

type localKey struct {
	slot chan struct{}
	refs int
}

// NewLocalManager creates an empty in-process lock manager
func NewLocalManager() *LocalManager {
	return &LocalManager{keys: make(map[string]*localKey)}
}

// AcquireLock blocks until key is free or ctx is done
func (m *LocalManager) AcquireLock(ctx context.Context, key string, _ time.Duration) (Lock, error) {
	m.mu.Lock()
	k, ok := m.keys[key]
	if !ok {
		k = &localKey{slot: make(chan struct{}, 1)}
		m.keys[key] = k
	}
	k.refs++
	m.mu.Unlock()

	select {
	case k.slot <- struct{}{}:
		l := &localLock{key: key, entry: k, manager: m}
		l.held.Store(true)
		return l, nil
	case <-ctx.Done():
		m.unref(key, k)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.TimeoutError("lock acquisition").WithContext("key", key)
		}
		return nil, errors.InternalError("failed to acquire lock", ctx.Err()).WithContext("key", key)
	}
}

func (m *LocalManager) AcquireJobLock(ctx context.Context, jobName string) (Lock, error) {
	return m.AcquireLock(ctx, "job:"+jobName, DefaultJobLockTTL)
}

func (m *LocalManager) Close() error { return nil }

func (m *LocalManager) unref(key string, k *localKey) {
	m.mu.Lock()
	k.refs--
	if k.refs == 0 {
		delete(m.keys, key)
	}
	m.mu.Unlock()
}

type localLock struct {
	key     string
	entry   *localKey
	manager *LocalManager
	held    atomic.Bool
	once    sync.Once
}

func (l *localLock) Key() string { return l.key }

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() {
		l.held.Store(false)
		<-l.entry.slot
		l.manager.unref(l.key, l.entry)
	})
	return nil
}

func (l *localLock) IsHeld() bool { return l.held.Load() }

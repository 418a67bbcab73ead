// Package locks serialises reconciliation of a remote job across process
// instances. The Redis-backed manager uses the Redlock implementation from
// go-redsync; without Redis a keyed in-process mutex serialises passes of
// the same job within this process only.
package locks

import (
	"context"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"scheduler-webhook/internal/common/errors"
	"scheduler-webhook/internal/redis"
)

// DefaultJobLockTTL bounds how long a crashed instance can block others from
// reconciling the same job.
const DefaultJobLockTTL = 30 * time.Second

// Lock is a held distributed lock.
type Lock interface {
	// Key returns the unique identifier for this lock.
	Key() string

	// Release stops renewal and frees the lock. Releasing twice is a no-op.
	Release(ctx context.Context) error

	// IsHeld reports local state only and does not query Redis.
	IsHeld() bool
}

// Manager hands out locks keyed by remote job name.
type Manager interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error)
	AcquireJobLock(ctx context.Context, jobName string) (Lock, error)
	Close() error
}

// RedsyncManager implements Manager using the Redlock algorithm.
type RedsyncManager struct {
	redsync    *redsync.Redsync
	localLocks map[string]*RedsyncLock
	mutex      sync.Mutex
}

// RedsyncLock wraps a redsync.Mutex and renews it until released.
type RedsyncLock struct {
	mutex      *redsync.Mutex
	key        string
	expiration time.Duration
	acquired   time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	manager    *RedsyncManager
	once       sync.Once
}

// NewRedsyncManager creates a lock manager on top of a connected client.
func NewRedsyncManager(redisClient *redis.Client) (*RedsyncManager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GoRedis())

	return &RedsyncManager{
		redsync:    redsync.New(pool),
		localLocks: make(map[string]*RedsyncLock),
	}, nil
}

// AcquireLock blocks until the lock is obtained, redsync gives up, or ctx is
// done. The lock is renewed at a third of its expiration until released.
func (rm *RedsyncManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := rm.redsync.NewMutex("lock:"+key, redsync.WithExpiry(expiration))

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err).WithContext("key", key)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &RedsyncLock{
		mutex:      mutex,
		key:        key,
		expiration: expiration,
		acquired:   time.Now(),
		ctx:        lockCtx,
		cancel:     cancel,
		manager:    rm,
	}

	rm.mutex.Lock()
	rm.localLocks[key] = lock
	rm.mutex.Unlock()

	go rm.renewLock(lock)

	return lock, nil
}

// AcquireJobLock locks a remote job name for one reconciliation pass.
func (rm *RedsyncManager) AcquireJobLock(ctx context.Context, jobName string) (Lock, error) {
	return rm.AcquireLock(ctx, "job:"+jobName, DefaultJobLockTTL)
}

func (rm *RedsyncManager) renewLock(lock *RedsyncLock) {
	renewInterval := lock.expiration / 3
	if renewInterval < time.Second {
		renewInterval = time.Second
	}

	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := lock.mutex.ExtendContext(ctx)
			cancel()

			if err != nil || !ok {
				lock.release()
				return
			}
		}
	}
}

// Close releases every lock still held by this manager.
func (rm *RedsyncManager) Close() error {
	rm.mutex.Lock()
	held := make([]*RedsyncLock, 0, len(rm.localLocks))
	for _, lock := range rm.localLocks {
		held = append(held, lock)
	}
	rm.mutex.Unlock()

	for _, lock := range held {
		lock.release()
	}
	return nil
}

func (rl *RedsyncLock) Key() string {
	return rl.key
}

func (rl *RedsyncLock) Release(ctx context.Context) error {
	var err error
	rl.once.Do(func() {
		rl.cancel()
		rl.manager.forget(rl)
		if _, unlockErr := rl.mutex.UnlockContext(ctx); unlockErr != nil {
			err = errors.InternalError("failed to release distributed lock", unlockErr).WithContext("key", rl.key)
		}
	})
	return err
}

func (rl *RedsyncLock) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rl.Release(ctx)
}

func (rl *RedsyncLock) IsHeld() bool {
	select {
	case <-rl.ctx.Done():
		return false
	default:
		return true
	}
}

func (rm *RedsyncManager) forget(lock *RedsyncLock) {
	rm.mutex.Lock()
	if rm.localLocks[lock.key] == lock {
		delete(rm.localLocks, lock.key)
	}
	rm.mutex.Unlock()
}

var _ Manager = (*RedsyncManager)(nil)

package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// lockManager is the subset of *redlock.RedLock used here
type lockManager interface {
	Lock(ctx context.Context, resource string, ttl time.Duration) (time.Duration, error)
	UnLock(ctx context.Context, resource string) error
}

// DistributedLocker implements lock.Locker with redlock so that replicas
// sharing a redis serialize work on the same key
type DistributedLocker struct {
	lockManager lockManager
	prefix      string
	ttl         time.Duration
	retryDelay  time.Duration
}

// NewDistributedLocker creates new distributed locker
func NewDistributedLocker(lm lockManager, prefix string, ttl time.Duration) *DistributedLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DistributedLocker{
		lockManager: lm,
		prefix:      prefix,
		ttl:         ttl,
		retryDelay:  100 * time.Millisecond,
	}
}

// Acquire polls until the lock is taken or ctx is done. The lock is renewed
// in the background until released.
func (d *DistributedLocker) Acquire(ctx context.Context, key string) (func(), error) {
	name := d.prefix + key

	for {
		expiry, err := d.lockManager.Lock(ctx, name, d.ttl)
		if err == nil && expiry > 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s not acquired: %w", name, ctx.Err())
		case <-time.After(d.retryDelay):
		}
	}

	logger.Debug("distributed lock acquired",
		zap.String("lock_name", name),
		zap.Duration("ttl", d.ttl),
	)

	stop := make(chan struct{})
	go d.renewLock(name, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			if err := d.lockManager.UnLock(context.Background(), name); err != nil {
				// lock may have already expired naturally
				logger.Warn("failed to release lock", zap.String("lock_name", name), zap.Error(err))
			}
		})
	}, nil
}

// renewLock renews the lock at 2/3 of its TTL until stop is closed
func (d *DistributedLocker) renewLock(name string, stop <-chan struct{}) {
	ticker := time.NewTicker((d.ttl * 2) / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// redlock-go has no extend; release and re-acquire
			ctx, cancel := context.WithTimeout(context.Background(), d.ttl/3)
			_ = d.lockManager.UnLock(ctx, name)
			expiry, err := d.lockManager.Lock(ctx, name, d.ttl)
			cancel()
			if err != nil || expiry <= 0 {
				logger.Error("lock lost during renewal",
					zap.String("lock_name", name),
					zap.Error(err),
				)
				return
			}
		}
	}
}

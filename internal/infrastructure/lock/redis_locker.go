package lock

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/cockroachdb/errors"

	platformlock "github.com/riskibarqy/fantasy-roster/internal/platform/lock"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/resilience"
)

const (
	defaultRedisLockTTL = 2 * time.Minute
	redisKeyPrefix      = "fantasy-roster:lock:"
)

// RedisLocker shares leases across replicas. A lease refreshes its TTL in the
// background until released, so a long waiver run keeps its league.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

func NewRedisLocker(client redislock.RedisClient, ttl time.Duration, breaker *resilience.CircuitBreaker, logger *logging.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisLockTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLocker{
		client:  redislock.New(client),
		ttl:     ttl,
		breaker: breaker,
		logger:  logger,
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (platformlock.Lease, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if err := l.breaker.Allow(); err != nil {
		return nil, errors.Wrapf(err, "redis lock %s", key)
	}

	obtained, err := l.client.Obtain(ctx, redisKeyPrefix+key, l.ttl, nil)
	l.breaker.Record(err, isRedisFailure)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, platformlock.ErrNotAcquired
		}
		return nil, errors.Wrapf(err, "obtain redis lock %s", key)
	}

	refreshCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	lease := &redisLease{
		lock:   obtained,
		key:    key,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go lease.keepAlive(refreshCtx, l.ttl, l.logger)
	return lease, nil
}

func isRedisFailure(err error) bool {
	return !errors.Is(err, redislock.ErrNotObtained)
}

type redisLease struct {
	lock   *redislock.Lock
	key    string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func (r *redisLease) Key() string {
	return r.key
}

func (r *redisLease) Release(ctx context.Context) error {
	r.once.Do(func() {
		r.cancel()
		<-r.done
		if err := r.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.err = errors.Wrapf(err, "release redis lock %s", r.key)
		}
	})
	return r.err
}

func (r *redisLease) keepAlive(ctx context.Context, ttl time.Duration, logger *logging.Logger) {
	defer close(r.done)

	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.lock.Refresh(ctx, ttl, nil); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WarnContext(ctx, "refresh redis lock failed", "key", r.key, "error", err)
				if errors.Is(err, redislock.ErrNotObtained) {
					return
				}
			}
		}
	}
}

package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotAcquired means another holder owns the key. It is not a failure of the
// backend.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out non-blocking, mutually exclusive leases per key.
type Locker interface {
	TryLock(ctx context.Context, key string) (Lease, error)
}

type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Key joins non-empty parts with ':' so callers share one naming scheme, for
// example Key("waivers", leagueID).
func Key(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ":")
}

// MemoryLocker is the single-process backend.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]uint64
	seq  uint64
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]uint64)}
}

func (l *MemoryLocker) TryLock(ctx context.Context, key string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("lock key is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrNotAcquired
	}
	l.seq++
	l.held[key] = l.seq
	return &memoryLease{locker: l, key: key, token: l.seq}, nil
}

func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  uint64
	once   sync.Once
}

func (m *memoryLease) Key() string {
	return m.key
}

// Release is idempotent and never frees a lease taken by a later holder.
func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() {
		m.locker.mu.Lock()
		if m.locker.held[m.key] == m.token {
			delete(m.locker.held, m.key)
		}
		m.locker.mu.Unlock()
	})
	return nil
}

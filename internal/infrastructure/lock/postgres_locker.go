package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	platformlock "github.com/riskibarqy/fantasy-roster/internal/platform/lock"
)

// PostgresLocker uses session level advisory locks. Each lease pins one
// pooled connection until it is released, since the lock belongs to the
// session that took it.
type PostgresLocker struct {
	db *sqlx.DB
}

func NewPostgresLocker(db *sqlx.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

func (l *PostgresLocker) TryLock(ctx context.Context, key string) (platformlock.Lease, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("lock key is required")
	}

	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for advisory lock %s: %w", key, err)
	}

	var acquired bool
	if err := conn.GetContext(ctx, &acquired, `SELECT pg_try_advisory_lock(hashtext($1))`, key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("try advisory lock %s: %w", key, err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, platformlock.ErrNotAcquired
	}
	return &postgresLease{conn: conn, key: key}, nil
}

type postgresLease struct {
	conn *sqlx.Conn
	key  string
	once sync.Once
	err  error
}

func (p *postgresLease) Key() string {
	return p.key
}

// Release unlocks and returns the connection to the pool. Closing the
// connection alone would keep the session, and the lock, alive in the pool.
func (p *postgresLease) Release(ctx context.Context) error {
	p.once.Do(func() {
		defer func() {
			_ = p.conn.Close()
		}()
		var released bool
		if err := p.conn.GetContext(ctx, &released, `SELECT pg_advisory_unlock(hashtext($1))`, p.key); err != nil {
			p.err = fmt.Errorf("advisory unlock %s: %w", p.key, err)
			return
		}
		if !released {
			p.err = fmt.Errorf("advisory lock %s was not held by this session", p.key)
		}
	})
	return p.err
}

//go:build integration

package lock

import (
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	platformlock "github.com/riskibarqy/fantasy-roster/internal/platform/lock"
)

func TestPostgresLocker_ExclusivePerKey(t *testing.T) {
	ctx := t.Context()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("locks"),
		tcpostgres.WithUsername("locks"),
		tcpostgres.WithPassword("locks"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	locker := NewPostgresLocker(db)
	key := platformlock.Key("waivers", "league-1")

	lease, err := locker.TryLock(ctx, key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := locker.TryLock(ctx, key); !errors.Is(err, platformlock.ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired while held, got %v", err)
	}

	other, err := locker.TryLock(ctx, platformlock.Key("waivers", "league-2"))
	if err != nil {
		t.Fatalf("other league must not be blocked: %v", err)
	}
	_ = other.Release(ctx)

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := locker.TryLock(ctx, key)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	_ = again.Release(ctx)
}

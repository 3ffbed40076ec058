//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
)

const (
	itLeagueID  = "it-league"
	itMatchupID = "it-league-w1"
)

// newTestDB starts a throwaway Postgres, applies db/migrations and seeds one
// league with three teams and a single matchup week.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("roster"),
		tcpostgres.WithUsername("roster"),
		tcpostgres.WithPassword("roster"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(migrationsDir(t)), dsn)
	if err != nil {
		t.Fatalf("create migrator: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("apply migrations: %v", err)
	}
	_, _ = m.Close()

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	seedIntegrationData(t, db)
	return db
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("resolve caller path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "db", "migrations"))
}

func seedIntegrationData(t *testing.T, db *sqlx.DB) {
	t.Helper()
	ctx := t.Context()

	owner := func(v string) *string { return &v }
	if err := NewLeagueRepository(db).Upsert(ctx, league.League{
		ID:           itLeagueID,
		Name:         "Integration League",
		Season:       "2026",
		RosterLimit:  2,
		WaiverPolicy: league.WaiverPolicyRolling,
		WaiverPeriod: 48 * time.Hour,
	}); err != nil {
		t.Fatalf("seed league: %v", err)
	}

	teams := NewTeamRepository(db)
	for _, item := range []team.Team{
		{ID: "team-a", LeagueID: itLeagueID, Name: "A", OwnerUserID: owner("user-a"), StandingRank: 1},
		{ID: "team-b", LeagueID: itLeagueID, Name: "B", OwnerUserID: owner("user-b"), StandingRank: 2},
		{ID: "team-bot", LeagueID: itLeagueID, Name: "Bot", StandingRank: 3},
	} {
		if err := teams.Upsert(ctx, item); err != nil {
			t.Fatalf("seed team %s: %v", item.ID, err)
		}
	}

	monday := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	if err := NewSnapshotRepository(db).UpsertMatchup(ctx, snapshot.Matchup{
		ID:       itMatchupID,
		LeagueID: itLeagueID,
		StartDay: monday,
		EndDay:   monday.AddDate(0, 0, 6),
	}); err != nil {
		t.Fatalf("seed matchup: %v", err)
	}
}

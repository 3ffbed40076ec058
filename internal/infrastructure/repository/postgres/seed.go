package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/memory"
)

// BootstrapSeed loads the demo leagues, teams and matchups into an empty
// database. It does nothing once any league exists.
func BootstrapSeed(ctx context.Context, db *sqlx.DB, now time.Time, weeks int) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM leagues WHERE deleted_at IS NULL`); err != nil {
		return fmt.Errorf("count leagues for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	leagues := NewLeagueRepository(db)
	for _, item := range memory.SeedLeagues() {
		if err := leagues.Upsert(ctx, item); err != nil {
			return fmt.Errorf("seed league %s: %w", item.ID, err)
		}
	}

	teams := NewTeamRepository(db)
	for _, item := range memory.SeedTeams() {
		if err := teams.Upsert(ctx, item); err != nil {
			return fmt.Errorf("seed team %s: %w", item.ID, err)
		}
	}

	snapshots := NewSnapshotRepository(db)
	for _, item := range memory.SeedMatchups(now, weeks) {
		if err := snapshots.UpsertMatchup(ctx, item); err != nil {
			return fmt.Errorf("seed matchup %s: %w", item.ID, err)
		}
	}
	return nil
}

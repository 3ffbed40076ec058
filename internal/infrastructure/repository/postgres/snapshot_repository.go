package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
)

type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) ListMatchups(ctx context.Context, leagueID string) ([]snapshot.Matchup, error) {
	query, args, err := qb.Select("*").From("matchups").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("start_day", "public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select matchups query: %w", err)
	}

	var rows []matchupTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select matchups: %w", err)
	}

	out := make([]snapshot.Matchup, 0, len(rows))
	for _, row := range rows {
		out = append(out, matchupFromRow(row))
	}
	return out, nil
}

func (r *SnapshotRepository) GetMatchup(ctx context.Context, leagueID, matchupID string) (snapshot.Matchup, bool, error) {
	query, args, err := qb.Select("*").From("matchups").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", matchupID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return snapshot.Matchup{}, false, fmt.Errorf("build get matchup query: %w", err)
	}

	var row matchupTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return snapshot.Matchup{}, false, nil
		}
		return snapshot.Matchup{}, false, fmt.Errorf("get matchup: %w", err)
	}
	return matchupFromRow(row), true, nil
}

func (r *SnapshotRepository) UpsertMatchup(ctx context.Context, m snapshot.Matchup) error {
	query, args, err := qb.InsertModel("matchups", matchupInsertModel{
		PublicID: m.ID,
		LeagueID: m.LeagueID,
		StartDay: dateOnly(m.StartDay),
		EndDay:   dateOnly(m.EndDay),
	}, qb.UpsertSuffix("(league_public_id, public_id) WHERE deleted_at IS NULL", []string{"start_day", "end_day"}, ""))
	if err != nil {
		return fmt.Errorf("build upsert matchup query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert matchup %s: %w", m.ID, err)
	}
	return nil
}

func (r *SnapshotRepository) GetDayLock(ctx context.Context, leagueID string, day time.Time) (snapshot.DayLock, bool, error) {
	query, args, err := qb.Select("*").From("snapshot_day_locks").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("day", dateOnly(day)),
		).
		ToSQL()
	if err != nil {
		return snapshot.DayLock{}, false, fmt.Errorf("build get day lock query: %w", err)
	}

	var row dayLockTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return snapshot.DayLock{}, false, nil
		}
		return snapshot.DayLock{}, false, fmt.Errorf("get day lock: %w", err)
	}
	return snapshot.DayLock{
		LeagueID: row.LeagueID,
		Day:      snapshot.Day(row.Day),
		LocksAt:  utcTime(row.LocksAt),
		LockedAt: nullTimePtr(row.LockedAt),
	}, true, nil
}

// UpsertDayLock never clears a recorded lock.
func (r *SnapshotRepository) UpsertDayLock(ctx context.Context, lock snapshot.DayLock) error {
	model := dayLockInsertModel{
		LeagueID: lock.LeagueID,
		Day:      dateOnly(lock.Day),
		LockedAt: optionalTime(lock.LockedAt),
	}
	if !lock.LocksAt.IsZero() {
		locksAt := lock.LocksAt.UTC()
		model.LocksAt = &locksAt
	}

	query, args, err := qb.InsertModel("snapshot_day_locks", model, `ON CONFLICT (league_public_id, day)
DO UPDATE SET
    locks_at = COALESCE(EXCLUDED.locks_at, snapshot_day_locks.locks_at),
    locked_at = COALESCE(EXCLUDED.locked_at, snapshot_day_locks.locked_at),
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert day lock query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert day lock league=%s day=%s: %w", lock.LeagueID, dateOnly(lock.Day), err)
	}
	return nil
}

func (r *SnapshotRepository) ListDay(ctx context.Context, teamID, matchupID string, day time.Time) ([]snapshot.Row, error) {
	return listDayRows(ctx, r.db, teamID, matchupID, day, false)
}

func (r *SnapshotRepository) ListDays(ctx context.Context, teamID, matchupID string) ([]time.Time, error) {
	query, args, err := qb.Select("DISTINCT day").From("daily_roster_snapshots").
		Where(
			qb.Eq("team_public_id", teamID),
			qb.Eq("matchup_public_id", matchupID),
		).
		OrderBy("day").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select snapshot days query: %w", err)
	}

	var days []time.Time
	if err := r.db.SelectContext(ctx, &days, query, args...); err != nil {
		return nil, fmt.Errorf("select snapshot days: %w", err)
	}
	for i := range days {
		days[i] = snapshot.Day(days[i])
	}
	return days, nil
}

// ReplaceDay rewrites one team day under row locks. Unchanged rows are left
// alone so the upsert count reflects real writes.
func (r *SnapshotRepository) ReplaceDay(ctx context.Context, teamID, matchupID string, day time.Time, rows []snapshot.Row) (snapshot.ReplaceResult, error) {
	day = snapshot.Day(day)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return snapshot.ReplaceResult{}, fmt.Errorf("begin tx replace snapshot day: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := listDayRows(ctx, tx, teamID, matchupID, day, true)
	if err != nil {
		return snapshot.ReplaceResult{}, err
	}
	for _, row := range existing {
		if row.Locked {
			return snapshot.ReplaceResult{}, fmt.Errorf("%w: team=%s day=%s", snapshot.ErrDayLocked, teamID, dateOnly(day))
		}
	}

	result := snapshot.ReplaceResult{}
	keep := make([]any, 0, len(rows))
	models := make([]snapshotRowInsertModel, 0, len(rows))
	now := time.Now().UTC()
	for _, row := range rows {
		updatedAt := row.UpdatedAt.UTC()
		if updatedAt.IsZero() {
			updatedAt = now
		}
		models = append(models, snapshotRowInsertModel{
			LeagueID:  row.LeagueID,
			TeamID:    teamID,
			MatchupID: matchupID,
			PlayerID:  row.PlayerID,
			Day:       dateOnly(day),
			Status:    string(row.Status),
			Slot:      string(row.Slot),
			UpdatedAt: updatedAt,
		})
		keep = append(keep, row.PlayerID)
	}
	if len(models) > 0 {
		query, args, err := qb.InsertModels("daily_roster_snapshots", models, qb.UpsertSuffix(
			"(team_public_id, matchup_public_id, player_id, day)",
			[]string{"status", "slot", "updated_at"},
			`daily_roster_snapshots.locked = FALSE
  AND (daily_roster_snapshots.status, daily_roster_snapshots.slot) IS DISTINCT FROM (EXCLUDED.status, EXCLUDED.slot)`,
		))
		if err != nil {
			return snapshot.ReplaceResult{}, fmt.Errorf("build upsert snapshot rows query: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return snapshot.ReplaceResult{}, fmt.Errorf("upsert snapshot rows team=%s day=%s: %w", teamID, dateOnly(day), err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return snapshot.ReplaceResult{}, fmt.Errorf("rows affected upsert snapshot rows: %w", err)
		}
		result.Upserted = int(affected)
	}

	deleteQuery, deleteArgs, err := qb.DeleteFrom("daily_roster_snapshots").
		Where(
			qb.Eq("team_public_id", teamID),
			qb.Eq("matchup_public_id", matchupID),
			qb.Eq("day", dateOnly(day)),
			qb.Eq("locked", false),
			qb.NotIn("player_id", keep),
		).
		ToSQL()
	if err != nil {
		return snapshot.ReplaceResult{}, fmt.Errorf("build delete stale snapshot rows query: %w", err)
	}
	res, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...)
	if err != nil {
		return snapshot.ReplaceResult{}, fmt.Errorf("delete stale snapshot rows: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return snapshot.ReplaceResult{}, fmt.Errorf("rows affected delete stale snapshot rows: %w", err)
	}
	result.Deleted = int(deleted)

	if err := tx.Commit(); err != nil {
		return snapshot.ReplaceResult{}, fmt.Errorf("commit replace snapshot day tx: %w", err)
	}
	return result, nil
}

func (r *SnapshotRepository) LockDay(ctx context.Context, leagueID string, day time.Time) (int, error) {
	query, args, err := qb.Update("daily_roster_snapshots").
		Set("locked", true).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("day", dateOnly(day)),
			qb.Eq("locked", false),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build lock snapshot day query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("lock snapshot day league=%s day=%s: %w", leagueID, dateOnly(day), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected lock snapshot day: %w", err)
	}
	return int(affected), nil
}

func (r *SnapshotRepository) ApplyCorrection(ctx context.Context, correction snapshot.Correction, at time.Time) error {
	day := dateOnly(correction.Day)
	keyConditions := []qb.Condition{
		qb.Eq("team_public_id", correction.TeamID),
		qb.Eq("matchup_public_id", correction.MatchupID),
		qb.Eq("player_id", correction.PlayerID),
		qb.Eq("day", day),
	}

	if correction.Remove {
		query, args, err := qb.DeleteFrom("daily_roster_snapshots").Where(keyConditions...).ToSQL()
		if err != nil {
			return fmt.Errorf("build delete corrected row query: %w", err)
		}
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete corrected row: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected delete corrected row: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: team=%s player=%s day=%s", snapshot.ErrRowNotFound, correction.TeamID, correction.PlayerID, day)
		}
		return nil
	}

	query, args, err := qb.InsertModel("daily_roster_snapshots", snapshotRowInsertModel{
		LeagueID:  correction.LeagueID,
		TeamID:    correction.TeamID,
		MatchupID: correction.MatchupID,
		PlayerID:  correction.PlayerID,
		Day:       day,
		Status:    string(correction.Status),
		Slot:      string(correction.Slot),
		Locked:    true,
		UpdatedAt: at.UTC(),
	}, `ON CONFLICT (team_public_id, matchup_public_id, player_id, day)
DO UPDATE SET
    status = EXCLUDED.status,
    slot = EXCLUDED.slot,
    locked = TRUE,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert corrected row query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert corrected row: %w", err)
	}
	return nil
}

func listDayRows(ctx context.Context, q sqlx.QueryerContext, teamID, matchupID string, day time.Time, forUpdate bool) ([]snapshot.Row, error) {
	builder := qb.Select("*").From("daily_roster_snapshots").
		Where(
			qb.Eq("team_public_id", teamID),
			qb.Eq("matchup_public_id", matchupID),
			qb.Eq("day", dateOnly(day)),
		).
		OrderBy("player_id")
	if forUpdate {
		builder = builder.ForUpdate()
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select snapshot day query: %w", err)
	}

	var rows []snapshotRowTableModel
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select snapshot day: %w", err)
	}

	out := make([]snapshot.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, snapshot.Row{
			LeagueID:  row.LeagueID,
			TeamID:    row.TeamID,
			MatchupID: row.MatchupID,
			PlayerID:  row.PlayerID,
			Day:       snapshot.Day(row.Day),
			Status:    roster.Status(row.Status),
			Slot:      roster.Slot(row.Slot),
			Locked:    row.Locked,
			UpdatedAt: row.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

func matchupFromRow(row matchupTableModel) snapshot.Matchup {
	return snapshot.Matchup{
		ID:       row.PublicID,
		LeagueID: row.LeagueID,
		StartDay: snapshot.Day(row.StartDay),
		EndDay:   snapshot.Day(row.EndDay),
	}
}

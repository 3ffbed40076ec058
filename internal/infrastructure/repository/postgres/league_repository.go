package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
)

type LeagueRepository struct {
	db *sqlx.DB
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) List(ctx context.Context) ([]league.League, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(qb.IsNull("deleted_at")).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select leagues query: %w", err)
	}

	var rows []leagueTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select leagues: %w", err)
	}

	out := make([]league.League, 0, len(rows))
	for _, row := range rows {
		out = append(out, leagueFromRow(row))
	}
	return out, nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, leagueID string) (league.League, bool, error) {
	query, args, err := qb.Select("*").From("leagues").
		Where(
			qb.Eq("public_id", leagueID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build get league by id query: %w", err)
	}

	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, false, nil
		}
		return league.League{}, false, fmt.Errorf("get league by id: %w", err)
	}
	return leagueFromRow(row), true, nil
}

// Upsert is used by seeding and admin tooling.
func (r *LeagueRepository) Upsert(ctx context.Context, item league.League) error {
	if err := item.Validate(); err != nil {
		return err
	}
	query, args, err := qb.InsertModel("leagues", leagueInsertModel{
		PublicID:            item.ID,
		Name:                item.Name,
		Season:              item.Season,
		RosterLimit:         item.RosterLimit,
		WaiverPolicy:        string(item.WaiverPolicy),
		WaiverPeriodSeconds: int64(item.WaiverPeriod / time.Second),
	}, `ON CONFLICT (public_id) WHERE deleted_at IS NULL
DO UPDATE SET
    name = EXCLUDED.name,
    season = EXCLUDED.season,
    roster_limit = EXCLUDED.roster_limit,
    waiver_policy = EXCLUDED.waiver_policy,
    waiver_period_seconds = EXCLUDED.waiver_period_seconds,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert league query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert league %s: %w", item.ID, err)
	}
	return nil
}

func leagueFromRow(row leagueTableModel) league.League {
	return league.League{
		ID:           row.PublicID,
		Name:         row.Name,
		Season:       row.Season,
		RosterLimit:  row.RosterLimit,
		WaiverPolicy: league.WaiverPolicy(row.WaiverPolicy),
		WaiverPeriod: time.Duration(row.WaiverPeriodSeconds) * time.Second,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

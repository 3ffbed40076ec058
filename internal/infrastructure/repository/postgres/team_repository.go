package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
)

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) ListByLeague(ctx context.Context, leagueID string) ([]team.Team, error) {
	query, args, err := qb.Select("*").From("teams").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select teams by league query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select teams by league: %w", err)
	}

	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		out = append(out, teamFromRow(row))
	}
	return out, nil
}

func (r *TeamRepository) GetByID(ctx context.Context, leagueID, teamID string) (team.Team, bool, error) {
	query, args, err := qb.Select("*").From("teams").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", teamID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return team.Team{}, false, fmt.Errorf("build get team by id query: %w", err)
	}

	var row teamTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("get team by id: %w", err)
	}
	return teamFromRow(row), true, nil
}

func (r *TeamRepository) Upsert(ctx context.Context, item team.Team) error {
	if err := item.Validate(); err != nil {
		return err
	}
	var owner *string
	if id, ok := item.Owner(); ok {
		owner = &id
	}
	query, args, err := qb.InsertModel("teams", teamInsertModel{
		PublicID:     item.ID,
		LeagueID:     item.LeagueID,
		Name:         item.Name,
		OwnerUserID:  owner,
		StandingRank: item.StandingRank,
	}, `ON CONFLICT (league_public_id, public_id) WHERE deleted_at IS NULL
DO UPDATE SET
    name = EXCLUDED.name,
    owner_user_id = EXCLUDED.owner_user_id,
    standing_rank = EXCLUDED.standing_rank,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert team query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert team %s: %w", item.ID, err)
	}
	return nil
}

func teamFromRow(row teamTableModel) team.Team {
	item := team.Team{
		ID:           row.PublicID,
		LeagueID:     row.LeagueID,
		Name:         row.Name,
		StandingRank: row.StandingRank,
	}
	if owner := stringValue(row.OwnerUserID); owner != "" {
		item.OwnerUserID = &owner
	}
	return item
}

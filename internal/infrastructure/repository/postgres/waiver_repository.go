package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
)

const pendingClaimUniqueIndex = "waiver_claims_pending_uidx"

type WaiverRepository struct {
	db *sqlx.DB
}

func NewWaiverRepository(db *sqlx.DB) *WaiverRepository {
	return &WaiverRepository{db: db}
}

func (r *WaiverRepository) CreateClaim(ctx context.Context, claim waiver.Claim) error {
	if err := claim.Validate(); err != nil {
		return err
	}

	query, args, err := qb.InsertModel("waiver_claims", waiverClaimInsertModel{
		PublicID:     claim.ID,
		LeagueID:     claim.LeagueID,
		TeamID:       claim.TeamID,
		AddPlayerID:  claim.AddPlayerID,
		DropPlayerID: claim.DropPlayerID,
		Status:       string(waiver.StatusPending),
		CreatedAt:    claim.CreatedAt.UTC(),
	}, "")
	if err != nil {
		return fmt.Errorf("build insert waiver claim query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, pendingClaimUniqueIndex) {
			return fmt.Errorf("%w: team=%s add=%s", waiver.ErrDuplicateClaim, claim.TeamID, claim.AddPlayerID)
		}
		return fmt.Errorf("insert waiver claim %s: %w", claim.ID, err)
	}
	return nil
}

func (r *WaiverRepository) GetClaim(ctx context.Context, leagueID, claimID string) (waiver.Claim, bool, error) {
	query, args, err := qb.Select("*").From("waiver_claims").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", claimID),
		).
		ToSQL()
	if err != nil {
		return waiver.Claim{}, false, fmt.Errorf("build get waiver claim query: %w", err)
	}

	var row waiverClaimTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return waiver.Claim{}, false, nil
		}
		return waiver.Claim{}, false, fmt.Errorf("get waiver claim: %w", err)
	}

	ranks, err := r.rankMap(ctx, leagueID)
	if err != nil {
		return waiver.Claim{}, false, err
	}
	return claimFromRow(row, ranks), true, nil
}

// ListPendingClaims ranks claims in SQL against the stored priorities. Teams
// without a priority row rank as 0, matching the in-memory store.
func (r *WaiverRepository) ListPendingClaims(ctx context.Context, leagueID string, policy league.WaiverPolicy, limit int) ([]waiver.Claim, error) {
	rankOrder := "priority ASC"
	if policy == league.WaiverPolicyReverseStandings {
		rankOrder = "priority DESC"
	}
	query, args, err := qb.Select("c.*", "COALESCE(p.rank, 0) AS priority").
		From(`waiver_claims c
LEFT JOIN waiver_priorities p
    ON p.league_public_id = c.league_public_id
   AND p.team_public_id = c.team_public_id`).
		Where(
			qb.Eq("c.league_public_id", leagueID),
			qb.Eq("c.status", string(waiver.StatusPending)),
		).
		OrderBy(rankOrder, "c.created_at", "c.public_id").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select pending claims query: %w", err)
	}

	var rows []rankedWaiverClaimRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select pending claims: %w", err)
	}

	out := make([]waiver.Claim, 0, len(rows))
	for _, row := range rows {
		claim := claimFromRow(row.waiverClaimTableModel, nil)
		claim.Priority = row.Priority
		out = append(out, claim)
	}
	return out, nil
}

func (r *WaiverRepository) ListClaims(ctx context.Context, filter waiver.ClaimFilter) ([]waiver.Claim, error) {
	conditions := []qb.Condition{qb.Eq("league_public_id", filter.LeagueID)}
	if filter.TeamID != "" {
		conditions = append(conditions, qb.Eq("team_public_id", filter.TeamID))
	}
	if filter.Status != "" {
		conditions = append(conditions, qb.Eq("status", string(filter.Status)))
	}
	query, args, err := qb.Select("*").From("waiver_claims").
		Where(conditions...).
		OrderBy("created_at DESC", "public_id DESC").
		Limit(filter.Limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select waiver claims query: %w", err)
	}

	var rows []waiverClaimTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select waiver claims: %w", err)
	}

	ranks, err := r.rankMap(ctx, filter.LeagueID)
	if err != nil {
		return nil, err
	}
	out := make([]waiver.Claim, 0, len(rows))
	for _, row := range rows {
		out = append(out, claimFromRow(row, ranks))
	}
	return out, nil
}

// ResolveClaim stores the outcome and, for a rotating win, the new priority
// order in one transaction. A retried batch either sees both or neither.
func (r *WaiverRepository) ResolveClaim(ctx context.Context, claim waiver.Claim, rotated []waiver.Priority) error {
	if !claim.Status.Terminal() {
		return fmt.Errorf("claim %s must be resolved before it is stored", claim.ID)
	}
	if rotated != nil {
		if err := waiver.ValidateContiguous(rotated); err != nil {
			return err
		}
	}

	processedAt := time.Now().UTC()
	if claim.ProcessedAt != nil {
		processedAt = claim.ProcessedAt.UTC()
	}
	query, args, err := qb.Update("waiver_claims").
		Set("status", string(claim.Status)).
		Set("failure_reason", optionalString(claim.FailureReason)).
		Set("processed_at", processedAt).
		Where(
			qb.Eq("league_public_id", claim.LeagueID),
			qb.Eq("public_id", claim.ID),
			qb.Eq("status", string(waiver.StatusPending)),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build resolve claim query: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx resolve claim %s: %w", claim.ID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("resolve claim %s: %w", claim.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected resolve claim %s: %w", claim.ID, err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return r.notPendingError(ctx, claim)
	}

	if rotated != nil {
		if err := replacePriorities(ctx, tx, claim.LeagueID, rotated); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve claim %s tx: %w", claim.ID, err)
	}
	return nil
}

func (r *WaiverRepository) notPendingError(ctx context.Context, claim waiver.Claim) error {
	current, ok, err := r.GetClaim(ctx, claim.LeagueID, claim.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: claim=%s", waiver.ErrClaimNotFound, claim.ID)
	}
	return fmt.Errorf("%w: claim=%s status=%s", waiver.ErrClaimNotPending, claim.ID, current.Status)
}

func (r *WaiverRepository) ListPriorities(ctx context.Context, leagueID string) ([]waiver.Priority, error) {
	query, args, err := qb.Select("*").From("waiver_priorities").
		Where(qb.Eq("league_public_id", leagueID)).
		OrderBy("rank").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select waiver priorities query: %w", err)
	}

	var rows []waiverPriorityTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select waiver priorities: %w", err)
	}

	out := make([]waiver.Priority, 0, len(rows))
	for _, row := range rows {
		out = append(out, waiver.Priority{LeagueID: row.LeagueID, TeamID: row.TeamID, Rank: row.Rank})
	}
	return out, nil
}

// ReplacePriorities swaps the whole order in one transaction so readers never
// see a half renumbered list.
func (r *WaiverRepository) ReplacePriorities(ctx context.Context, leagueID string, priorities []waiver.Priority) error {
	if err := waiver.ValidateContiguous(priorities); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace waiver priorities: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := replacePriorities(ctx, tx, leagueID, priorities); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace waiver priorities tx: %w", err)
	}
	return nil
}

func replacePriorities(ctx context.Context, tx *sqlx.Tx, leagueID string, priorities []waiver.Priority) error {
	clearQuery, clearArgs, err := qb.DeleteFrom("waiver_priorities").
		Where(qb.Eq("league_public_id", leagueID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build clear waiver priorities query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, clearQuery, clearArgs...); err != nil {
		return fmt.Errorf("clear waiver priorities: %w", err)
	}

	if len(priorities) == 0 {
		return nil
	}
	insert := qb.InsertInto("waiver_priorities").Columns("league_public_id", "team_public_id", "rank")
	for _, p := range priorities {
		insert = insert.Values(leagueID, p.TeamID, p.Rank)
	}
	insertQuery, insertArgs, err := insert.ToSQL()
	if err != nil {
		return fmt.Errorf("build insert waiver priorities query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return fmt.Errorf("insert waiver priorities: %w", err)
	}
	return nil
}

func (r *WaiverRepository) PlaceOnWire(ctx context.Context, entry waiver.WireEntry) error {
	query, args, err := qb.InsertModel("waiver_wire", waiverWireInsertModel{
		LeagueID:        entry.LeagueID,
		PlayerID:        entry.PlayerID,
		DroppedByTeamID: entry.DroppedByTeamID,
		ClearsAt:        entry.ClearsAt.UTC(),
	}, `ON CONFLICT (league_public_id, player_id)
DO UPDATE SET
    dropped_by_team_public_id = EXCLUDED.dropped_by_team_public_id,
    clears_at = EXCLUDED.clears_at`)
	if err != nil {
		return fmt.Errorf("build place on wire query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("place player %s on wire: %w", entry.PlayerID, err)
	}
	return nil
}

func (r *WaiverRepository) GetWireEntry(ctx context.Context, leagueID, playerID string) (waiver.WireEntry, bool, error) {
	query, args, err := qb.Select("*").From("waiver_wire").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("player_id", playerID),
		).
		ToSQL()
	if err != nil {
		return waiver.WireEntry{}, false, fmt.Errorf("build get wire entry query: %w", err)
	}

	var row waiverWireTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return waiver.WireEntry{}, false, nil
		}
		return waiver.WireEntry{}, false, fmt.Errorf("get wire entry: %w", err)
	}
	return waiver.WireEntry{
		LeagueID:        row.LeagueID,
		PlayerID:        row.PlayerID,
		DroppedByTeamID: row.DroppedByTeamID,
		ClearsAt:        row.ClearsAt.UTC(),
	}, true, nil
}

func (r *WaiverRepository) ClearWire(ctx context.Context, leagueID, playerID string) error {
	query, args, err := qb.DeleteFrom("waiver_wire").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("player_id", playerID),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build clear wire query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear wire player %s: %w", playerID, err)
	}
	return nil
}

func (r *WaiverRepository) ClearExpiredWire(ctx context.Context, leagueID string, now time.Time) (int, error) {
	query, args, err := qb.DeleteFrom("waiver_wire").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Lte("clears_at", now.UTC()),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build clear expired wire query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear expired wire: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected clear expired wire: %w", err)
	}
	return int(affected), nil
}

func (r *WaiverRepository) rankMap(ctx context.Context, leagueID string) (map[string]int, error) {
	priorities, err := r.ListPriorities(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return waiver.RankMap(priorities), nil
}

func claimFromRow(row waiverClaimTableModel, ranks map[string]int) waiver.Claim {
	return waiver.Claim{
		ID:            row.PublicID,
		LeagueID:      row.LeagueID,
		TeamID:        row.TeamID,
		AddPlayerID:   row.AddPlayerID,
		DropPlayerID:  row.DropPlayerID,
		Status:        waiver.Status(row.Status),
		FailureReason: stringValue(row.FailureReason),
		Priority:      ranks[row.TeamID],
		CreatedAt:     row.CreatedAt.UTC(),
		ProcessedAt:   nullTimePtr(row.ProcessedAt),
	}
}

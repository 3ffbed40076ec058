package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
)

const rosterPlayerUniqueIndex = "roster_players_league_player_uidx"

// RosterStore keeps live rosters and the roster ledger. A team transaction
// holds the team row with SELECT ... FOR UPDATE; league wide ownership is
// guaranteed by the unique index on (league_public_id, player_id).
type RosterStore struct {
	db *sqlx.DB
}

func NewRosterStore(db *sqlx.DB) *RosterStore {
	return &RosterStore{db: db}
}

func (r *RosterStore) GetEntry(ctx context.Context, leagueID, teamID string) (roster.Entry, error) {
	return loadEntry(ctx, r.db, leagueID, teamID)
}

func (r *RosterStore) ListEntries(ctx context.Context, leagueID string) ([]roster.Entry, error) {
	query, args, err := qb.Select("*").From("roster_players").
		Where(qb.Eq("league_public_id", leagueID)).
		OrderBy("team_public_id", "player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league rosters query: %w", err)
	}

	var rows []rosterPlayerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select league rosters: %w", err)
	}

	byTeam := make(map[string]roster.Entry)
	for _, row := range rows {
		entry, ok := byTeam[row.TeamID]
		if !ok {
			entry = roster.NewEntry(leagueID, row.TeamID)
		}
		addRosterRow(&entry, row)
		byTeam[row.TeamID] = entry
	}

	out := make([]roster.Entry, 0, len(byTeam))
	for _, entry := range byTeam {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (r *RosterStore) OwnerOf(ctx context.Context, leagueID, playerID string) (string, bool, error) {
	return ownerOf(ctx, r.db, leagueID, playerID)
}

func (r *RosterStore) WithTeamLock(ctx context.Context, leagueID, teamID string, fn func(ctx context.Context, tx roster.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx roster team=%s: %w", teamID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	lockQuery, lockArgs, err := qb.Select("id").From("teams").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", teamID),
			qb.IsNull("deleted_at"),
		).
		ForUpdate().
		ToSQL()
	if err != nil {
		return fmt.Errorf("build lock team query: %w", err)
	}
	var rowID int64
	if err := tx.GetContext(ctx, &rowID, lockQuery, lockArgs...); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", roster.ErrTeamNotFound, teamID)
		}
		return fmt.Errorf("lock team %s: %w", teamID, err)
	}

	entry, err := loadEntry(ctx, tx, leagueID, teamID)
	if err != nil {
		return err
	}

	rtx := &rosterTx{tx: tx, leagueID: leagueID, teamID: teamID, current: entry}
	if err := fn(ctx, rtx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err, rosterPlayerUniqueIndex) {
			return fmt.Errorf("%w: team=%s", roster.ErrPlayerAlreadyOwned, teamID)
		}
		return fmt.Errorf("commit roster tx team=%s: %w", teamID, err)
	}
	return nil
}

// ListByTeam implements ledger.Reader. With a limit it keeps the newest
// entries, still returned in ascending order.
func (r *RosterStore) ListByTeam(ctx context.Context, leagueID, teamID string, limit int) ([]ledger.Entry, error) {
	builder := qb.Select("*").From("roster_ledger").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("team_public_id", teamID),
		)
	if limit > 0 {
		builder = builder.OrderBy("id DESC").Limit(limit)
	} else {
		builder = builder.OrderBy("id ASC")
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select roster ledger query: %w", err)
	}

	var rows []ledgerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select roster ledger: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	out := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledgerFromRow(row))
	}
	return out, nil
}

func (r *RosterStore) FindByReason(ctx context.Context, leagueID, teamID, reason string) (ledger.Entry, bool, error) {
	query, args, err := qb.Select("*").From("roster_ledger").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("team_public_id", teamID),
			qb.Eq("reason", reason),
		).
		OrderBy("id DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("build find ledger by reason query: %w", err)
	}

	var row ledgerTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return ledger.Entry{}, false, nil
		}
		return ledger.Entry{}, false, fmt.Errorf("find ledger entry by reason: %w", err)
	}
	return ledgerFromRow(row), true, nil
}

// Append writes a ledger entry outside a roster transaction.
func (r *RosterStore) Append(ctx context.Context, entry ledger.Entry) error {
	return appendLedger(ctx, r.db, entry)
}

type rosterTx struct {
	tx       *sqlx.Tx
	leagueID string
	teamID   string
	current  roster.Entry
}

func (t *rosterTx) Entry() roster.Entry {
	return t.current.Clone()
}

func (t *rosterTx) OwnerOf(ctx context.Context, playerID string) (string, bool, error) {
	return ownerOf(ctx, t.tx, t.leagueID, playerID)
}

// Save writes only the players that differ from the last saved state.
func (t *rosterTx) Save(ctx context.Context, entry roster.Entry) error {
	if entry.LeagueID != t.leagueID || entry.TeamID != t.teamID {
		return fmt.Errorf("roster entry %s/%s saved in transaction for %s/%s", entry.LeagueID, entry.TeamID, t.leagueID, t.teamID)
	}

	for _, change := range roster.Diff(t.current, entry) {
		var (
			query string
			args  []any
			err   error
		)
		switch {
		case change.After == nil:
			query, args, err = qb.DeleteFrom("roster_players").
				Where(
					qb.Eq("league_public_id", t.leagueID),
					qb.Eq("team_public_id", t.teamID),
					qb.Eq("player_id", change.PlayerID),
				).
				ToSQL()
		case change.Before == nil:
			query, args, err = qb.InsertModel("roster_players", rosterPlayerInsertModel{
				LeagueID: t.leagueID,
				TeamID:   t.teamID,
				PlayerID: change.PlayerID,
				Status:   string(change.After.Status),
				Slot:     string(change.After.Slot),
			}, "")
		default:
			query, args, err = qb.Update("roster_players").
				Set("status", string(change.After.Status)).
				Set("slot", string(change.After.Slot)).
				SetExpr("updated_at", "NOW()").
				Where(
					qb.Eq("league_public_id", t.leagueID),
					qb.Eq("team_public_id", t.teamID),
					qb.Eq("player_id", change.PlayerID),
				).
				ToSQL()
		}
		if err != nil {
			return fmt.Errorf("build roster change query player=%s: %w", change.PlayerID, err)
		}
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err, rosterPlayerUniqueIndex) {
				return fmt.Errorf("%w: player=%s", roster.ErrPlayerAlreadyOwned, change.PlayerID)
			}
			return fmt.Errorf("write roster player %s: %w", change.PlayerID, err)
		}
	}

	t.current = entry.Clone()
	return nil
}

func (t *rosterTx) AppendLedger(ctx context.Context, entry ledger.Entry) error {
	if entry.LeagueID != t.leagueID || entry.TeamID != t.teamID {
		return fmt.Errorf("ledger entry for %s/%s appended in transaction for %s/%s", entry.LeagueID, entry.TeamID, t.leagueID, t.teamID)
	}
	return appendLedger(ctx, t.tx, entry)
}

func loadEntry(ctx context.Context, q sqlx.QueryerContext, leagueID, teamID string) (roster.Entry, error) {
	query, args, err := qb.Select("*").From("roster_players").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("team_public_id", teamID),
		).
		OrderBy("player_id").
		ToSQL()
	if err != nil {
		return roster.Entry{}, fmt.Errorf("build select roster query: %w", err)
	}

	var rows []rosterPlayerTableModel
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return roster.Entry{}, fmt.Errorf("select roster team=%s: %w", teamID, err)
	}

	entry := roster.NewEntry(leagueID, teamID)
	for _, row := range rows {
		addRosterRow(&entry, row)
	}
	return entry, nil
}

func ownerOf(ctx context.Context, q sqlx.QueryerContext, leagueID, playerID string) (string, bool, error) {
	query, args, err := qb.Select("team_public_id").From("roster_players").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("player_id", playerID),
		).
		ToSQL()
	if err != nil {
		return "", false, fmt.Errorf("build select player owner query: %w", err)
	}

	var teamID string
	if err := sqlx.GetContext(ctx, q, &teamID, query, args...); err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get owner of player %s: %w", playerID, err)
	}
	return teamID, true, nil
}

func appendLedger(ctx context.Context, e sqlx.ExecerContext, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	model := ledgerInsertModel{
		PublicID:        entry.ID,
		LeagueID:        entry.LeagueID,
		TeamID:          entry.TeamID,
		Action:          string(entry.Action),
		Source:          string(entry.Source),
		AddedPlayerID:   optionalString(entry.AddedPlayerID),
		AddedStatus:     optionalString(entry.AddedStatus),
		AddedSlot:       optionalString(entry.AddedSlot),
		DroppedPlayerID: optionalString(entry.DroppedPlayerID),
		ActorUserID:     optionalString(entry.ActorUserID),
		Reason:          optionalString(entry.Reason),
		MatchupID:       optionalString(entry.MatchupID),
		CreatedAt:       entry.CreatedAt.UTC(),
	}
	if entry.Day != nil {
		day := dateOnly(*entry.Day)
		model.Day = &day
	}

	query, args, err := qb.InsertModel("roster_ledger", model, "")
	if err != nil {
		return fmt.Errorf("build insert ledger entry query: %w", err)
	}
	if _, err := e.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert ledger entry %s: %w", entry.ID, err)
	}
	return nil
}

func addRosterRow(entry *roster.Entry, row rosterPlayerTableModel) {
	entry.Players[row.PlayerID] = roster.Assignment{
		Status: roster.Status(row.Status),
		Slot:   roster.Slot(row.Slot),
	}
	if row.UpdatedAt.After(entry.UpdatedAt) {
		entry.UpdatedAt = row.UpdatedAt.UTC()
	}
}

func ledgerFromRow(row ledgerTableModel) ledger.Entry {
	return ledger.Entry{
		ID:              row.PublicID,
		LeagueID:        row.LeagueID,
		TeamID:          row.TeamID,
		Seq:             row.ID,
		Action:          ledger.Action(row.Action),
		AddedPlayerID:   stringValue(row.AddedPlayerID),
		AddedStatus:     stringValue(row.AddedStatus),
		AddedSlot:       stringValue(row.AddedSlot),
		DroppedPlayerID: stringValue(row.DroppedPlayerID),
		ActorUserID:     stringValue(row.ActorUserID),
		Reason:          stringValue(row.Reason),
		Source:          ledger.Source(row.Source),
		MatchupID:       stringValue(row.MatchupID),
		Day:             nullTimePtr(row.Day),
		CreatedAt:       row.CreatedAt.UTC(),
	}
}

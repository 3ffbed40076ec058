package postgres

import (
	"database/sql"
	"time"
)

type rosterPlayerTableModel struct {
	ID        int64     `db:"id"`
	LeagueID  string    `db:"league_public_id"`
	TeamID    string    `db:"team_public_id"`
	PlayerID  string    `db:"player_id"`
	Status    string    `db:"status"`
	Slot      string    `db:"slot"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type rosterPlayerInsertModel struct {
	LeagueID string `db:"league_public_id"`
	TeamID   string `db:"team_public_id"`
	PlayerID string `db:"player_id"`
	Status   string `db:"status"`
	Slot     string `db:"slot"`
}

type ledgerTableModel struct {
	ID              int64          `db:"id"`
	PublicID        string         `db:"public_id"`
	LeagueID        string         `db:"league_public_id"`
	TeamID          string         `db:"team_public_id"`
	Action          string         `db:"action"`
	Source          string         `db:"source"`
	AddedPlayerID   sql.NullString `db:"added_player_id"`
	AddedStatus     sql.NullString `db:"added_status"`
	AddedSlot       sql.NullString `db:"added_slot"`
	DroppedPlayerID sql.NullString `db:"dropped_player_id"`
	ActorUserID     sql.NullString `db:"actor_user_id"`
	Reason          sql.NullString `db:"reason"`
	MatchupID       sql.NullString `db:"matchup_public_id"`
	Day             sql.NullTime   `db:"day"`
	CreatedAt       time.Time      `db:"created_at"`
}

type ledgerInsertModel struct {
	PublicID        string    `db:"public_id"`
	LeagueID        string    `db:"league_public_id"`
	TeamID          string    `db:"team_public_id"`
	Action          string    `db:"action"`
	Source          string    `db:"source"`
	AddedPlayerID   *string   `db:"added_player_id"`
	AddedStatus     *string   `db:"added_status"`
	AddedSlot       *string   `db:"added_slot"`
	DroppedPlayerID *string   `db:"dropped_player_id"`
	ActorUserID     *string   `db:"actor_user_id"`
	Reason          *string   `db:"reason"`
	MatchupID       *string   `db:"matchup_public_id"`
	Day             *string   `db:"day"`
	CreatedAt       time.Time `db:"created_at"`
}

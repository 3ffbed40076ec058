package postgres

import (
	"database/sql"
	"time"
)

type waiverClaimTableModel struct {
	ID            int64          `db:"id"`
	PublicID      string         `db:"public_id"`
	LeagueID      string         `db:"league_public_id"`
	TeamID        string         `db:"team_public_id"`
	AddPlayerID   string         `db:"add_player_id"`
	DropPlayerID  string         `db:"drop_player_id"`
	Status        string         `db:"status"`
	FailureReason sql.NullString `db:"failure_reason"`
	CreatedAt     time.Time      `db:"created_at"`
	ProcessedAt   sql.NullTime   `db:"processed_at"`
}

type rankedWaiverClaimRow struct {
	waiverClaimTableModel
	Priority int `db:"priority"`
}

type waiverClaimInsertModel struct {
	PublicID     string    `db:"public_id"`
	LeagueID     string    `db:"league_public_id"`
	TeamID       string    `db:"team_public_id"`
	AddPlayerID  string    `db:"add_player_id"`
	DropPlayerID string    `db:"drop_player_id"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

type waiverPriorityTableModel struct {
	LeagueID  string    `db:"league_public_id"`
	TeamID    string    `db:"team_public_id"`
	Rank      int       `db:"rank"`
	UpdatedAt time.Time `db:"updated_at"`
}

type waiverWireTableModel struct {
	LeagueID        string    `db:"league_public_id"`
	PlayerID        string    `db:"player_id"`
	DroppedByTeamID string    `db:"dropped_by_team_public_id"`
	ClearsAt        time.Time `db:"clears_at"`
	CreatedAt       time.Time `db:"created_at"`
}

type waiverWireInsertModel struct {
	LeagueID        string    `db:"league_public_id"`
	PlayerID        string    `db:"player_id"`
	DroppedByTeamID string    `db:"dropped_by_team_public_id"`
	ClearsAt        time.Time `db:"clears_at"`
}

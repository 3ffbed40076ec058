package postgres

import (
	"database/sql"
	"time"
)

type matchupTableModel struct {
	ID        int64      `db:"id"`
	PublicID  string     `db:"public_id"`
	LeagueID  string     `db:"league_public_id"`
	StartDay  time.Time  `db:"start_day"`
	EndDay    time.Time  `db:"end_day"`
	CreatedAt time.Time  `db:"created_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

type matchupInsertModel struct {
	PublicID string `db:"public_id"`
	LeagueID string `db:"league_public_id"`
	StartDay string `db:"start_day"`
	EndDay   string `db:"end_day"`
}

type dayLockTableModel struct {
	LeagueID  string       `db:"league_public_id"`
	Day       time.Time    `db:"day"`
	LocksAt   sql.NullTime `db:"locks_at"`
	LockedAt  sql.NullTime `db:"locked_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

type dayLockInsertModel struct {
	LeagueID string     `db:"league_public_id"`
	Day      string     `db:"day"`
	LocksAt  *time.Time `db:"locks_at"`
	LockedAt *time.Time `db:"locked_at"`
}

type snapshotRowTableModel struct {
	LeagueID  string    `db:"league_public_id"`
	TeamID    string    `db:"team_public_id"`
	MatchupID string    `db:"matchup_public_id"`
	PlayerID  string    `db:"player_id"`
	Day       time.Time `db:"day"`
	Status    string    `db:"status"`
	Slot      string    `db:"slot"`
	Locked    bool      `db:"locked"`
	UpdatedAt time.Time `db:"updated_at"`
}

type snapshotRowInsertModel struct {
	LeagueID  string    `db:"league_public_id"`
	TeamID    string    `db:"team_public_id"`
	MatchupID string    `db:"matchup_public_id"`
	PlayerID  string    `db:"player_id"`
	Day       string    `db:"day"`
	Status    string    `db:"status"`
	Slot      string    `db:"slot"`
	Locked    bool      `db:"locked"`
	UpdatedAt time.Time `db:"updated_at"`
}

package postgres

import (
	"database/sql"
	"time"
)

type teamTableModel struct {
	ID           int64          `db:"id"`
	PublicID     string         `db:"public_id"`
	LeagueID     string         `db:"league_public_id"`
	Name         string         `db:"name"`
	OwnerUserID  sql.NullString `db:"owner_user_id"`
	StandingRank int            `db:"standing_rank"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	DeletedAt    *time.Time     `db:"deleted_at"`
}

type teamInsertModel struct {
	PublicID     string  `db:"public_id"`
	LeagueID     string  `db:"league_public_id"`
	Name         string  `db:"name"`
	OwnerUserID  *string `db:"owner_user_id"`
	StandingRank int     `db:"standing_rank"`
}

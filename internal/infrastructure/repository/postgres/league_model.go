package postgres

import "time"

type leagueTableModel struct {
	ID                  int64      `db:"id"`
	PublicID            string     `db:"public_id"`
	Name                string     `db:"name"`
	Season              string     `db:"season"`
	RosterLimit         int        `db:"roster_limit"`
	WaiverPolicy        string     `db:"waiver_policy"`
	WaiverPeriodSeconds int64      `db:"waiver_period_seconds"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
	DeletedAt           *time.Time `db:"deleted_at"`
}

type leagueInsertModel struct {
	PublicID            string `db:"public_id"`
	Name                string `db:"name"`
	Season              string `db:"season"`
	RosterLimit         int    `db:"roster_limit"`
	WaiverPolicy        string `db:"waiver_policy"`
	WaiverPeriodSeconds int64  `db:"waiver_period_seconds"`
}

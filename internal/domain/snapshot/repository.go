package snapshot

import (
	"context"
	"time"
)

type Repository interface {
	ListMatchups(ctx context.Context, leagueID string) ([]Matchup, error)
	GetMatchup(ctx context.Context, leagueID, matchupID string) (Matchup, bool, error)

	GetDayLock(ctx context.Context, leagueID string, day time.Time) (DayLock, bool, error)
	UpsertDayLock(ctx context.Context, lock DayLock) error

	ListDay(ctx context.Context, teamID, matchupID string, day time.Time) ([]Row, error)
	// ListDays returns the days that already have at least one row.
	ListDays(ctx context.Context, teamID, matchupID string) ([]time.Time, error)
	// ReplaceDay makes the unlocked rows for one team day equal rows. It
	// returns ErrDayLocked, and writes nothing, when any row of that day is
	// locked.
	ReplaceDay(ctx context.Context, teamID, matchupID string, day time.Time, rows []Row) (ReplaceResult, error)
	// LockDay flags every row of the league day as locked.
	LockDay(ctx context.Context, leagueID string, day time.Time) (int, error)
	// ApplyCorrection is the only write path for locked rows.
	ApplyCorrection(ctx context.Context, correction Correction, at time.Time) error
}

package ledger

import "context"

type Reader interface {
	// ListByTeam returns entries in ascending Seq order. limit <= 0 means all.
	ListByTeam(ctx context.Context, leagueID, teamID string, limit int) ([]Entry, error)
	// FindByReason returns the newest entry of the team carrying reason.
	FindByReason(ctx context.Context, leagueID, teamID, reason string) (Entry, bool, error)
}

// Appender is used outside a roster transaction, for example by snapshot
// corrections.
type Appender interface {
	Append(ctx context.Context, entry Entry) error
}

type Repository interface {
	Reader
	Appender
}

package roster

import (
	"context"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
)

// Store persists live rosters. Cross-team uniqueness of a player inside a
// league is enforced by the store at commit, not only by callers.
type Store interface {
	// GetEntry returns an empty entry for a team that never rostered anyone.
	GetEntry(ctx context.Context, leagueID, teamID string) (Entry, error)
	ListEntries(ctx context.Context, leagueID string) ([]Entry, error)
	OwnerOf(ctx context.Context, leagueID, playerID string) (teamID string, owned bool, err error)
	// WithTeamLock runs fn holding the team row exclusively. Everything fn
	// writes through tx commits together or not at all.
	WithTeamLock(ctx context.Context, leagueID, teamID string, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Entry() Entry
	OwnerOf(ctx context.Context, playerID string) (teamID string, owned bool, err error)
	Save(ctx context.Context, entry Entry) error
	AppendLedger(ctx context.Context, entry ledger.Entry) error
}

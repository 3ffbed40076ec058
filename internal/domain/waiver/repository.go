package waiver

import (
	"context"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
)

type ClaimRepository interface {
	// CreateClaim fails with ErrDuplicateClaim when an identical claim is
	// still pending.
	CreateClaim(ctx context.Context, claim Claim) error
	GetClaim(ctx context.Context, leagueID, claimID string) (Claim, bool, error)
	// ListPendingClaims returns at most limit pending claims with Priority
	// filled, in processing order for policy under the stored priorities.
	ListPendingClaims(ctx context.Context, leagueID string, policy league.WaiverPolicy, limit int) ([]Claim, error)
	ListClaims(ctx context.Context, filter ClaimFilter) ([]Claim, error)
	// ResolveClaim stores a terminal claim and, when rotated is non-nil,
	// replaces the league's priorities in the same transaction. It only
	// updates a claim that is still pending and returns ErrClaimNotPending
	// otherwise.
	ResolveClaim(ctx context.Context, claim Claim, rotated []Priority) error
}

type PriorityRepository interface {
	ListPriorities(ctx context.Context, leagueID string) ([]Priority, error)
	ReplacePriorities(ctx context.Context, leagueID string, priorities []Priority) error
}

type WireRepository interface {
	PlaceOnWire(ctx context.Context, entry WireEntry) error
	GetWireEntry(ctx context.Context, leagueID, playerID string) (WireEntry, bool, error)
	ClearWire(ctx context.Context, leagueID, playerID string) error
	ClearExpiredWire(ctx context.Context, leagueID string, now time.Time) (int, error)
}

type Repository interface {
	ClaimRepository
	PriorityRepository
	WireRepository
}

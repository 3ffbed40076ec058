package team

import "context"

// Repository describes team persistence needs from use cases.
type Repository interface {
	ListByLeague(ctx context.Context, leagueID string) ([]Team, error)
	GetByID(ctx context.Context, leagueID, teamID string) (Team, bool, error)
}

// FreshReader is implemented by caching decorators. GetByIDFresh reads past
// the cache so ownership checks see the current owner.
type FreshReader interface {
	GetByIDFresh(ctx context.Context, leagueID, teamID string) (Team, bool, error)
}

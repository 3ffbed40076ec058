package cache

import (
	"context"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
	basecache "github.com/riskibarqy/fantasy-roster/internal/platform/cache"
)

// Read-through decorators for reference data. Roster ownership, waiver
// state and snapshot rows are never cached because every move and claim must
// see the committed state.

const leagueListKey = "league:list"

// found caches a lookup result together with its existence flag so a missing
// row is remembered as well as a present one.
type found[T any] struct {
	value  T
	exists bool
}

func loadOne[T any](ctx context.Context, store *basecache.Store, key string, get func(context.Context) (T, bool, error)) (T, bool, error) {
	res, err := basecache.Load(ctx, store, key, func(ctx context.Context) (found[T], error) {
		value, exists, err := get(ctx)
		if err != nil {
			return found[T]{}, err
		}
		return found[T]{value: value, exists: exists}, nil
	})
	return res.value, res.exists, err
}

type LeagueRepository struct {
	next  league.Repository
	cache *basecache.Store
}

func NewLeagueRepository(next league.Repository, cache *basecache.Store) *LeagueRepository {
	return &LeagueRepository{next: next, cache: cache}
}

func (r *LeagueRepository) List(ctx context.Context) ([]league.League, error) {
	items, err := basecache.Load(ctx, r.cache, leagueListKey, func(ctx context.Context) ([]league.League, error) {
		items, err := r.next.List(ctx)
		return append([]league.League(nil), items...), err
	})
	if err != nil {
		return nil, err
	}
	return append([]league.League(nil), items...), nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, leagueID string) (league.League, bool, error) {
	return loadOne(ctx, r.cache, leagueKey(leagueID), func(ctx context.Context) (league.League, bool, error) {
		return r.next.GetByID(ctx, leagueID)
	})
}

// Invalidate drops the cached league and the league list.
func (r *LeagueRepository) Invalidate(ctx context.Context, leagueID string) {
	r.cache.Delete(ctx, leagueListKey, leagueKey(leagueID))
}

func leagueKey(leagueID string) string {
	return "league:id:" + leagueID
}

type TeamRepository struct {
	next  team.Repository
	cache *basecache.Store
}

func NewTeamRepository(next team.Repository, cache *basecache.Store) *TeamRepository {
	return &TeamRepository{next: next, cache: cache}
}

func (r *TeamRepository) ListByLeague(ctx context.Context, leagueID string) ([]team.Team, error) {
	items, err := basecache.Load(ctx, r.cache, teamPrefix(leagueID)+"list", func(ctx context.Context) ([]team.Team, error) {
		items, err := r.next.ListByLeague(ctx, leagueID)
		return cloneTeams(items), err
	})
	if err != nil {
		return nil, err
	}
	return cloneTeams(items), nil
}

func (r *TeamRepository) GetByID(ctx context.Context, leagueID, teamID string) (team.Team, bool, error) {
	item, exists, err := loadOne(ctx, r.cache, teamKey(leagueID, teamID), func(ctx context.Context) (team.Team, bool, error) {
		item, exists, err := r.next.GetByID(ctx, leagueID, teamID)
		return cloneTeam(item), exists, err
	})
	return cloneTeam(item), exists, err
}

// GetByIDFresh reads the team from the store and refreshes the cached entry.
func (r *TeamRepository) GetByIDFresh(ctx context.Context, leagueID, teamID string) (team.Team, bool, error) {
	item, exists, err := r.next.GetByID(ctx, leagueID, teamID)
	if err != nil {
		return team.Team{}, false, err
	}
	r.cache.Set(ctx, teamKey(leagueID, teamID), found[team.Team]{value: cloneTeam(item), exists: exists})
	return cloneTeam(item), exists, nil
}

// InvalidateLeague drops every cached team of the league, used after an
// ownership or standings change.
func (r *TeamRepository) InvalidateLeague(ctx context.Context, leagueID string) {
	r.cache.DeletePrefix(ctx, teamPrefix(leagueID))
}

func teamPrefix(leagueID string) string {
	return "team:" + leagueID + ":"
}

func teamKey(leagueID, teamID string) string {
	return teamPrefix(leagueID) + "id:" + teamID
}

func cloneTeam(item team.Team) team.Team {
	if item.OwnerUserID != nil {
		owner := *item.OwnerUserID
		item.OwnerUserID = &owner
	}
	return item
}

func cloneTeams(items []team.Team) []team.Team {
	if items == nil {
		return nil
	}
	out := make([]team.Team, len(items))
	for i, item := range items {
		out[i] = cloneTeam(item)
	}
	return out
}

// SnapshotRepository caches matchup calendars and passes every snapshot row
// and day lock operation straight through.
type SnapshotRepository struct {
	snapshot.Repository
	cache *basecache.Store
}

func NewSnapshotRepository(next snapshot.Repository, cache *basecache.Store) *SnapshotRepository {
	return &SnapshotRepository{Repository: next, cache: cache}
}

func (r *SnapshotRepository) ListMatchups(ctx context.Context, leagueID string) ([]snapshot.Matchup, error) {
	items, err := basecache.Load(ctx, r.cache, matchupPrefix(leagueID)+"list", func(ctx context.Context) ([]snapshot.Matchup, error) {
		items, err := r.Repository.ListMatchups(ctx, leagueID)
		return append([]snapshot.Matchup(nil), items...), err
	})
	if err != nil {
		return nil, err
	}
	return append([]snapshot.Matchup(nil), items...), nil
}

func (r *SnapshotRepository) GetMatchup(ctx context.Context, leagueID, matchupID string) (snapshot.Matchup, bool, error) {
	return loadOne(ctx, r.cache, matchupPrefix(leagueID)+"id:"+matchupID, func(ctx context.Context) (snapshot.Matchup, bool, error) {
		return r.Repository.GetMatchup(ctx, leagueID, matchupID)
	})
}

func matchupPrefix(leagueID string) string {
	return "matchup:" + leagueID + ":"
}

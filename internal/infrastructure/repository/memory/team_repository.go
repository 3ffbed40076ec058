package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
)

type TeamRepository struct {
	mu            sync.RWMutex
	teamsByLeague map[string][]team.Team
}

func NewTeamRepository(teams []team.Team) *TeamRepository {
	r := &TeamRepository{teamsByLeague: make(map[string][]team.Team)}
	_ = r.UpsertTeams(context.Background(), teams)
	return r
}

func (r *TeamRepository) ListByLeague(_ context.Context, leagueID string) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	teams := r.teamsByLeague[leagueID]
	out := make([]team.Team, 0, len(teams))
	for _, item := range teams {
		out = append(out, cloneTeam(item))
	}

	return out, nil
}

func (r *TeamRepository) GetByID(_ context.Context, leagueID, teamID string) (team.Team, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.teamsByLeague[leagueID] {
		if item.ID == teamID {
			return cloneTeam(item), true, nil
		}
	}

	return team.Team{}, false, nil
}

// UpsertTeams keeps each league's teams ordered by id.
func (r *TeamRepository) UpsertTeams(_ context.Context, items []team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := make(map[string]struct{})
	for _, item := range items {
		leagueID := strings.TrimSpace(item.LeagueID)
		teamID := strings.TrimSpace(item.ID)
		if leagueID == "" || teamID == "" {
			continue
		}

		rows := r.teamsByLeague[leagueID]
		updated := false
		for idx := range rows {
			if rows[idx].ID == teamID {
				rows[idx] = cloneTeam(item)
				updated = true
				break
			}
		}
		if !updated {
			rows = append(rows, cloneTeam(item))
		}
		r.teamsByLeague[leagueID] = rows
		touched[leagueID] = struct{}{}
	}

	for leagueID := range touched {
		rows := r.teamsByLeague[leagueID]
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	}
	return nil
}

func cloneTeam(item team.Team) team.Team {
	if item.OwnerUserID != nil {
		owner := *item.OwnerUserID
		item.OwnerUserID = &owner
	}
	return item
}

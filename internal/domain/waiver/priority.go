package waiver

import (
	"fmt"
	"sort"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
)

// SortClaims orders claims for processing: rank ascending under rolling,
// descending under reverse standings, then oldest first. Claim id breaks the
// remaining ties so the order is total.
func SortClaims(claims []Claim, ranks map[string]int, policy league.WaiverPolicy) {
	rankOf := func(c Claim) int {
		if r, ok := ranks[c.TeamID]; ok {
			return r
		}
		return c.Priority
	}
	sort.SliceStable(claims, func(i, j int) bool {
		ri, rj := rankOf(claims[i]), rankOf(claims[j])
		if ri != rj {
			if policy == league.WaiverPolicyReverseStandings {
				return ri > rj
			}
			return ri < rj
		}
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.Before(claims[j].CreatedAt)
		}
		return claims[i].ID < claims[j].ID
	})
}

// RotateToBack moves teamID to the last rank and renumbers everyone 1..n.
func RotateToBack(priorities []Priority, teamID string) []Priority {
	ordered := sortedByRank(priorities)
	out := make([]Priority, 0, len(ordered))
	var winner *Priority
	for i := range ordered {
		if ordered[i].TeamID == teamID {
			p := ordered[i]
			winner = &p
			continue
		}
		out = append(out, ordered[i])
	}
	if winner != nil {
		out = append(out, *winner)
	}
	return renumber(out)
}

// ValidateContiguous checks ranks are exactly 1..n with one team per rank.
func ValidateContiguous(priorities []Priority) error {
	seenTeam := make(map[string]struct{}, len(priorities))
	seenRank := make(map[int]struct{}, len(priorities))
	for _, p := range priorities {
		if _, dup := seenTeam[p.TeamID]; dup {
			return fmt.Errorf("%w: team %s listed twice", ErrInvalidPriority, p.TeamID)
		}
		if _, dup := seenRank[p.Rank]; dup {
			return fmt.Errorf("%w: rank %d used twice", ErrInvalidPriority, p.Rank)
		}
		if p.Rank < 1 || p.Rank > len(priorities) {
			return fmt.Errorf("%w: rank %d outside 1..%d", ErrInvalidPriority, p.Rank, len(priorities))
		}
		seenTeam[p.TeamID] = struct{}{}
		seenRank[p.Rank] = struct{}{}
	}
	return nil
}

// Normalize returns a contiguous priority list covering exactly teams.
// Rolling keeps the existing order and appends newcomers by team id. Reverse
// standings derives ranks from the table so the last placed team gets the
// highest rank; teams without a standing rank come first with the lowest.
func Normalize(leagueID string, existing []Priority, teams []team.Team, policy league.WaiverPolicy) []Priority {
	members := make(map[string]team.Team, len(teams))
	for _, t := range teams {
		members[t.ID] = t
	}

	if policy == league.WaiverPolicyReverseStandings {
		ordered := append([]team.Team(nil), teams...)
		sort.SliceStable(ordered, func(i, j int) bool {
			ri, rj := ordered[i].StandingRank, ordered[j].StandingRank
			if ri != rj {
				return ri < rj
			}
			return ordered[i].ID < ordered[j].ID
		})
		out := make([]Priority, 0, len(ordered))
		for _, t := range ordered {
			out = append(out, Priority{LeagueID: leagueID, TeamID: t.ID})
		}
		return renumber(out)
	}

	out := make([]Priority, 0, len(teams))
	seen := make(map[string]struct{}, len(teams))
	for _, p := range sortedByRank(existing) {
		if _, ok := members[p.TeamID]; !ok {
			continue
		}
		if _, dup := seen[p.TeamID]; dup {
			continue
		}
		seen[p.TeamID] = struct{}{}
		out = append(out, Priority{LeagueID: leagueID, TeamID: p.TeamID})
	}

	missing := make([]string, 0)
	for _, t := range teams {
		if _, ok := seen[t.ID]; !ok {
			missing = append(missing, t.ID)
		}
	}
	sort.Strings(missing)
	for _, id := range missing {
		out = append(out, Priority{LeagueID: leagueID, TeamID: id})
	}
	return renumber(out)
}

func RankMap(priorities []Priority) map[string]int {
	out := make(map[string]int, len(priorities))
	for _, p := range priorities {
		out[p.TeamID] = p.Rank
	}
	return out
}

func sortedByRank(priorities []Priority) []Priority {
	out := append([]Priority(nil), priorities...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out
}

func renumber(priorities []Priority) []Priority {
	for i := range priorities {
		priorities[i].Rank = i + 1
	}
	return priorities
}

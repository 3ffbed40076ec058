package memory

import (
	"fmt"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
)

const (
	LeagueIDNorthDivision = "nhl-north-2026"
	LeagueIDPacificPool   = "nhl-pacific-2026"
)

func SeedLeagues() []league.League {
	return []league.League{
		{
			ID:           LeagueIDNorthDivision,
			Name:         "North Division Keepers",
			Season:       "2026/2027",
			RosterLimit:  16,
			WaiverPolicy: league.WaiverPolicyRolling,
			WaiverPeriod: 48 * time.Hour,
		},
		{
			ID:           LeagueIDPacificPool,
			Name:         "Pacific Pool",
			Season:       "2026/2027",
			RosterLimit:  14,
			WaiverPolicy: league.WaiverPolicyReverseStandings,
			WaiverPeriod: 24 * time.Hour,
		},
	}
}

func SeedTeams() []team.Team {
	owner := func(v string) *string { return &v }
	return []team.Team{
		{ID: "north-ice-owls", LeagueID: LeagueIDNorthDivision, Name: "Ice Owls", OwnerUserID: owner("user-ana"), StandingRank: 1},
		{ID: "north-blue-lines", LeagueID: LeagueIDNorthDivision, Name: "Blue Lines", OwnerUserID: owner("user-ben"), StandingRank: 2},
		{ID: "north-zamboni", LeagueID: LeagueIDNorthDivision, Name: "Zamboni Drivers", OwnerUserID: owner("user-cai"), StandingRank: 3},
		{ID: "north-autopilot", LeagueID: LeagueIDNorthDivision, Name: "Autopilot", StandingRank: 4},
		{ID: "pacific-tide", LeagueID: LeagueIDPacificPool, Name: "Tide", OwnerUserID: owner("user-dee"), StandingRank: 2},
		{ID: "pacific-orcas", LeagueID: LeagueIDPacificPool, Name: "Orcas", OwnerUserID: owner("user-eli"), StandingRank: 1},
	}
}

// SeedMatchups builds weekly matchups starting on the Monday of now's week.
func SeedMatchups(now time.Time, weeks int) []snapshot.Matchup {
	today := snapshot.Day(now)
	offset := (int(today.Weekday()) + 6) % 7
	start := today.AddDate(0, 0, -offset)

	out := make([]snapshot.Matchup, 0, weeks*len(SeedLeagues()))
	for _, lg := range SeedLeagues() {
		for w := 0; w < weeks; w++ {
			weekStart := start.AddDate(0, 0, 7*w)
			out = append(out, snapshot.Matchup{
				ID:       fmt.Sprintf("%s-w%02d", lg.ID, w+1),
				LeagueID: lg.ID,
				StartDay: weekStart,
				EndDay:   weekStart.AddDate(0, 0, 6),
			})
		}
	}
	return out
}

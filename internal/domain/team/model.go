package team

import (
	"fmt"
	"strings"
)

// Team is a fantasy team inside a league. Simulated teams have no owner.
type Team struct {
	ID          string
	LeagueID    string
	Name        string
	OwnerUserID *string
	// StandingRank is the current league table position, 1 being the leader.
	// Zero means standings are not known yet.
	StandingRank int
}

func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.LeagueID == "" {
		return fmt.Errorf("team league id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}

	return nil
}

func (t Team) Owner() (string, bool) {
	if t.OwnerUserID == nil {
		return "", false
	}
	owner := strings.TrimSpace(*t.OwnerUserID)
	return owner, owner != ""
}

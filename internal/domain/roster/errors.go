package roster

import "errors"

var (
	ErrLeagueNotFound     = errors.New("league not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrPlayerAlreadyOwned = errors.New("player already owned in league")
	ErrRosterFull         = errors.New("roster full")
	ErrTeamHasNoOwner     = errors.New("team has no owner")
	ErrPlayerNotOnRoster  = errors.New("player not on roster")
	ErrInvalidSlot        = errors.New("invalid roster slot")
)

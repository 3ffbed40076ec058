package httpapi

type rosterMoveRequest struct {
	AddPlayerID  string `json:"add_player_id" validate:"required,max=64"`
	DropPlayerID string `json:"drop_player_id" validate:"omitempty,max=64,nefield=AddPlayerID"`
	Status       string `json:"status" validate:"omitempty,oneof=active bench reserve"`
	Slot         string `json:"slot" validate:"omitempty,max=8"`
	Reason       string `json:"reason" validate:"omitempty,max=500"`
}

type slotMoveRequest struct {
	Status string `json:"status" validate:"required,oneof=active bench reserve"`
	Slot   string `json:"slot" validate:"omitempty,max=8"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type waiverClaimRequest struct {
	TeamID       string `json:"team_id" validate:"required,max=64"`
	AddPlayerID  string `json:"add_player_id" validate:"required,max=64"`
	DropPlayerID string `json:"drop_player_id" validate:"omitempty,max=64,nefield=AddPlayerID"`
}

type internalJobRequest struct {
	LeagueID   string `json:"league_id" validate:"omitempty,max=64"`
	DispatchID string `json:"dispatch_id" validate:"omitempty,max=200"`
	Force      bool   `json:"force"`
	Day        string `json:"day" validate:"omitempty,datetime=2006-01-02"`
}

type reconcileRosterRequest struct {
	LeagueID    string `json:"league_id" validate:"required,max=64"`
	TeamID      string `json:"team_id" validate:"required,max=64"`
	DryRun      bool   `json:"dry_run"`
	ActorUserID string `json:"actor_user_id" validate:"required_if=DryRun false,max=64"`
	Reason      string `json:"reason" validate:"omitempty,max=500"`
}

type snapshotCorrectionRequest struct {
	LeagueID    string `json:"league_id" validate:"required,max=64"`
	TeamID      string `json:"team_id" validate:"required,max=64"`
	MatchupID   string `json:"matchup_id" validate:"required,max=64"`
	PlayerID    string `json:"player_id" validate:"required,max=64"`
	Day         string `json:"day" validate:"required,datetime=2006-01-02"`
	Status      string `json:"status" validate:"required_if=Remove false,omitempty,oneof=active bench reserve"`
	Slot        string `json:"slot" validate:"omitempty,max=8"`
	Remove      bool   `json:"remove"`
	ActorUserID string `json:"actor_user_id" validate:"required,max=64"`
	Reason      string `json:"reason" validate:"required,max=500"`
}

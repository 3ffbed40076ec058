package ledger

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionMove       Action = "move"
	ActionSlotChange Action = "slot_change"
	ActionCorrection Action = "correction"
	ActionReconcile  Action = "reconcile"
)

// Source says which path produced a mutation.
type Source string

const (
	SourceManual Source = "manual"
	SourceWaiver Source = "waiver"
	SourceAdmin  Source = "admin"
	SourceSystem Source = "system"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceWaiver, SourceAdmin, SourceSystem:
		return true
	default:
		return false
	}
}

// Entry is one accepted roster mutation. Entries are never updated or
// deleted. Seq is assigned by the store and orders entries within a team.
type Entry struct {
	ID              string
	LeagueID        string
	TeamID          string
	Seq             int64
	Action          Action
	AddedPlayerID   string
	AddedStatus     string
	AddedSlot       string
	DroppedPlayerID string
	ActorUserID     string
	Reason          string
	Source          Source
	// MatchupID and Day are set on snapshot corrections only.
	MatchupID string
	Day       *time.Time
	CreatedAt time.Time
}

func (e Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("ledger entry id is required")
	}
	if e.LeagueID == "" || e.TeamID == "" {
		return fmt.Errorf("ledger entry league and team are required")
	}
	if !e.Source.Valid() {
		return fmt.Errorf("ledger entry source %q is not supported", e.Source)
	}
	switch e.Action {
	case ActionMove:
		if e.AddedPlayerID == "" && e.DroppedPlayerID == "" {
			return fmt.Errorf("move entry needs an added or dropped player")
		}
	case ActionSlotChange:
		if e.AddedPlayerID == "" {
			return fmt.Errorf("slot change entry needs a player")
		}
	case ActionCorrection:
		if e.ActorUserID == "" || e.Reason == "" {
			return fmt.Errorf("correction entry needs actor and reason")
		}
		if e.Day == nil || e.MatchupID == "" {
			return fmt.Errorf("correction entry needs matchup and day")
		}
	case ActionReconcile:
	default:
		return fmt.Errorf("ledger action %q is not supported", e.Action)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("ledger entry created_at is required")
	}
	return nil
}

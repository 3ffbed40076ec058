package roster

import (
	"fmt"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
)

// Move is one add and/or drop against a team roster.
type Move struct {
	AddPlayerID  string
	DropPlayerID string
	Placement    Assignment
}

// ApplyMove returns the roster after the move. The drop happens first, so a
// drop can free the spot the add needs. e is never modified.
func ApplyMove(e Entry, m Move, limit int) (Entry, error) {
	if m.AddPlayerID == "" && m.DropPlayerID == "" {
		return Entry{}, fmt.Errorf("move needs a player to add or drop")
	}
	if m.AddPlayerID != "" && m.AddPlayerID == m.DropPlayerID {
		return Entry{}, fmt.Errorf("cannot add and drop the same player %s", m.AddPlayerID)
	}

	out := e.Clone()
	if m.DropPlayerID != "" {
		if !out.Has(m.DropPlayerID) {
			return Entry{}, fmt.Errorf("%w: %s", ErrPlayerNotOnRoster, m.DropPlayerID)
		}
		delete(out.Players, m.DropPlayerID)
	}

	if m.AddPlayerID == "" {
		return out, nil
	}
	if out.Has(m.AddPlayerID) {
		return Entry{}, fmt.Errorf("%w: %s", ErrPlayerAlreadyOwned, m.AddPlayerID)
	}

	placement, err := m.Placement.Normalize()
	if err != nil {
		return Entry{}, err
	}
	if placement.Status == StatusReserve {
		return Entry{}, fmt.Errorf("%w: new players join active or bench", ErrInvalidSlot)
	}
	if out.Occupancy() >= limit {
		return Entry{}, fmt.Errorf("%w: limit=%d", ErrRosterFull, limit)
	}
	out.Players[m.AddPlayerID] = placement

	return out, nil
}

// ApplySlotChange moves an owned player to a new status/slot. Leaving reserve
// needs a free roster spot.
func ApplySlotChange(e Entry, playerID string, to Assignment, limit int) (Entry, error) {
	current, ok := e.Players[playerID]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrPlayerNotOnRoster, playerID)
	}
	placement, err := to.Normalize()
	if err != nil {
		return Entry{}, err
	}

	out := e.Clone()
	if !current.Status.CountsTowardLimit() && placement.Status.CountsTowardLimit() && out.Occupancy() >= limit {
		return Entry{}, fmt.Errorf("%w: limit=%d", ErrRosterFull, limit)
	}
	out.Players[playerID] = placement
	return out, nil
}

// Replay rebuilds a roster from ledger history. Entries must be in sequence
// order. Corrections and reconcile markers do not touch the live roster.
func Replay(leagueID, teamID string, entries []ledger.Entry) Entry {
	out := NewEntry(leagueID, teamID)
	for _, e := range entries {
		switch e.Action {
		case ledger.ActionMove:
			if e.DroppedPlayerID != "" {
				delete(out.Players, e.DroppedPlayerID)
			}
			if e.AddedPlayerID != "" {
				out.Players[e.AddedPlayerID] = Assignment{Status: Status(e.AddedStatus), Slot: Slot(e.AddedSlot)}
			}
		case ledger.ActionSlotChange:
			if _, ok := out.Players[e.AddedPlayerID]; ok {
				out.Players[e.AddedPlayerID] = Assignment{Status: Status(e.AddedStatus), Slot: Slot(e.AddedSlot)}
			}
		}
	}
	return out
}

package roster

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusBench   Status = "bench"
	StatusReserve Status = "reserve"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusBench, StatusReserve:
		return true
	default:
		return false
	}
}

// CountsTowardLimit reports whether the status occupies a roster spot.
// Reserve (injured) players do not.
func (s Status) CountsTowardLimit() bool {
	return s == StatusActive || s == StatusBench
}

// Slot is a lineup position. The set is closed; anything else is rejected
// with ErrInvalidSlot.
type Slot string

const (
	SlotNone    Slot = ""
	SlotCenter  Slot = "C"
	SlotLeft    Slot = "LW"
	SlotRight   Slot = "RW"
	SlotDefense Slot = "D"
	SlotGoalie  Slot = "G"
	SlotUtility Slot = "UTIL"
	SlotInjured Slot = "IR"
)

var activeSlots = map[Slot]struct{}{
	SlotCenter:  {},
	SlotLeft:    {},
	SlotRight:   {},
	SlotDefense: {},
	SlotGoalie:  {},
	SlotUtility: {},
}

func ParseSlot(v string) (Slot, error) {
	slot := Slot(strings.ToUpper(strings.TrimSpace(v)))
	if slot == SlotNone || slot == SlotInjured {
		return slot, nil
	}
	if _, ok := activeSlots[slot]; ok {
		return slot, nil
	}
	return SlotNone, fmt.Errorf("%w: %q", ErrInvalidSlot, v)
}

// Assignment is where a player sits on a roster.
type Assignment struct {
	Status Status
	Slot   Slot
}

// Normalize fills defaults and checks the slot belongs to the status:
// active needs an active slot, bench has no slot, reserve is always IR.
func (a Assignment) Normalize() (Assignment, error) {
	if a.Status == "" {
		a.Status = StatusBench
	}
	switch a.Status {
	case StatusActive:
		if _, ok := activeSlots[a.Slot]; !ok {
			return Assignment{}, fmt.Errorf("%w: active player needs a lineup slot, got %q", ErrInvalidSlot, a.Slot)
		}
	case StatusBench:
		if a.Slot != SlotNone {
			return Assignment{}, fmt.Errorf("%w: bench player cannot hold slot %q", ErrInvalidSlot, a.Slot)
		}
	case StatusReserve:
		if a.Slot == SlotNone {
			a.Slot = SlotInjured
		}
		if a.Slot != SlotInjured {
			return Assignment{}, fmt.Errorf("%w: reserve player must use %s, got %q", ErrInvalidSlot, SlotInjured, a.Slot)
		}
	default:
		return Assignment{}, fmt.Errorf("%w: unknown status %q", ErrInvalidSlot, a.Status)
	}
	return a, nil
}

// Entry is the live roster of one team. Each player has exactly one
// assignment, so the active, bench and reserve sets are disjoint.
type Entry struct {
	LeagueID  string
	TeamID    string
	Players   map[string]Assignment
	UpdatedAt time.Time
}

func NewEntry(leagueID, teamID string) Entry {
	return Entry{
		LeagueID: leagueID,
		TeamID:   teamID,
		Players:  make(map[string]Assignment),
	}
}

func (e Entry) Clone() Entry {
	out := e
	out.Players = make(map[string]Assignment, len(e.Players))
	for id, a := range e.Players {
		out.Players[id] = a
	}
	return out
}

func (e Entry) Has(playerID string) bool {
	_, ok := e.Players[playerID]
	return ok
}

// Occupancy is the number of players counted against the roster limit.
func (e Entry) Occupancy() int {
	n := 0
	for _, a := range e.Players {
		if a.Status.CountsTowardLimit() {
			n++
		}
	}
	return n
}

func (e Entry) Active() []string  { return e.withStatus(StatusActive) }
func (e Entry) Bench() []string   { return e.withStatus(StatusBench) }
func (e Entry) Reserve() []string { return e.withStatus(StatusReserve) }

// Slots maps active and reserve players to their slot.
func (e Entry) Slots() map[string]Slot {
	out := make(map[string]Slot)
	for id, a := range e.Players {
		if a.Slot != SlotNone {
			out[id] = a.Slot
		}
	}
	return out
}

func (e Entry) PlayerIDs() []string {
	out := make([]string, 0, len(e.Players))
	for id := range e.Players {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (e Entry) withStatus(status Status) []string {
	out := make([]string, 0)
	for id, a := range e.Players {
		if a.Status == status {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Change is one player level difference between two entries.
type Change struct {
	PlayerID string
	Before   *Assignment
	After    *Assignment
}

// Diff lists changes needed to turn from into to, ordered by player id.
func Diff(from, to Entry) []Change {
	ids := make(map[string]struct{}, len(from.Players)+len(to.Players))
	for id := range from.Players {
		ids[id] = struct{}{}
	}
	for id := range to.Players {
		ids[id] = struct{}{}
	}

	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	out := make([]Change, 0)
	for _, id := range keys {
		before, hadBefore := from.Players[id]
		after, hasAfter := to.Players[id]
		switch {
		case hadBefore && hasAfter && before == after:
			continue
		case hadBefore && hasAfter:
			out = append(out, Change{PlayerID: id, Before: &before, After: &after})
		case hadBefore:
			out = append(out, Change{PlayerID: id, Before: &before})
		default:
			out = append(out, Change{PlayerID: id, After: &after})
		}
	}
	return out
}

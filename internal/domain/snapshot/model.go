package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
)

var (
	ErrDayLocked        = errors.New("snapshot day is locked")
	ErrMatchupNotFound  = errors.New("matchup not found")
	ErrDayOutsideWindow = errors.New("day outside matchup window")
	ErrRowNotFound      = errors.New("snapshot row not found")
)

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IsMutable is the only rule deciding whether a day's rows may be rewritten
// from the live roster. Past days never are. Today and future days are until
// their own day lock applies, whether from a game start or an early LockDay.
func IsMutable(day, today time.Time, dayLocked bool) bool {
	if Day(day).Before(Day(today)) {
		return false
	}
	return !dayLocked
}

// Matchup is a scoring period. StartDay and EndDay are inclusive.
type Matchup struct {
	ID       string
	LeagueID string
	StartDay time.Time
	EndDay   time.Time
}

func (m Matchup) Days() []time.Time {
	start, end := Day(m.StartDay), Day(m.EndDay)
	out := make([]time.Time, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (m Matchup) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(m.StartDay)) && !d.After(Day(m.EndDay))
}

// DayLock records when a league day stops accepting roster changes.
type DayLock struct {
	LeagueID string
	Day      time.Time
	// LocksAt is the first real-world game start of the day.
	LocksAt  time.Time
	LockedAt *time.Time
}

func (d DayLock) IsLocked(now time.Time) bool {
	if d.LockedAt != nil {
		return true
	}
	return !d.LocksAt.IsZero() && !now.Before(d.LocksAt)
}

// Row is one player's frozen position on one day. Rows are keyed by
// (team, matchup, player, day).
type Row struct {
	LeagueID  string
	TeamID    string
	MatchupID string
	PlayerID  string
	Day       time.Time
	Status    roster.Status
	Slot      roster.Slot
	Locked    bool
	UpdatedAt time.Time
}

func (r Row) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.TeamID, r.MatchupID, r.PlayerID, Day(r.Day).Format(time.DateOnly))
}

// RowsFromEntry projects the live roster onto one matchup day.
func RowsFromEntry(entry roster.Entry, matchupID string, day, now time.Time) []Row {
	out := make([]Row, 0, len(entry.Players))
	for _, playerID := range entry.PlayerIDs() {
		a := entry.Players[playerID]
		out = append(out, Row{
			LeagueID:  entry.LeagueID,
			TeamID:    entry.TeamID,
			MatchupID: matchupID,
			PlayerID:  playerID,
			Day:       Day(day),
			Status:    a.Status,
			Slot:      a.Slot,
			UpdatedAt: now,
		})
	}
	return out
}

func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Day.Equal(rows[j].Day) {
			return rows[i].Day.Before(rows[j].Day)
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
}

// ReplaceResult counts what a day rewrite changed.
type ReplaceResult struct {
	Upserted int
	Deleted  int
}

type Correction struct {
	LeagueID    string
	TeamID      string
	MatchupID   string
	PlayerID    string
	Day         time.Time
	Status      roster.Status
	Slot        roster.Slot
	Remove      bool
	ActorUserID string
	Reason      string
}

package snapshot

import (
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
)

func TestIsMutable(t *testing.T) {
	today := time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		day    time.Time
		locked bool
		want   bool
	}{
		{name: "yesterday", day: today.AddDate(0, 0, -1), want: false},
		{name: "yesterday without a lock row", day: today.AddDate(0, 0, -1), locked: false, want: false},
		{name: "today before lock", day: Day(today), want: true},
		{name: "today after lock", day: Day(today), locked: true, want: false},
		{name: "today late evening locked", day: today.Add(8 * time.Hour).Add(-time.Minute), locked: true, want: false},
		{name: "tomorrow", day: today.AddDate(0, 0, 1), want: true},
		{name: "tomorrow locked early", day: today.AddDate(0, 0, 1), locked: true, want: false},
		{name: "next week locked early", day: today.AddDate(0, 0, 7), locked: true, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMutable(tc.day, today, tc.locked); got != tc.want {
				t.Fatalf("IsMutable(%s)=%v want %v", tc.day.Format(time.DateOnly), got, tc.want)
			}
		})
	}
}

func TestDayLock_IsLocked(t *testing.T) {
	puck := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
	lock := DayLock{LeagueID: "l1", Day: Day(puck), LocksAt: puck}

	if lock.IsLocked(puck.Add(-time.Second)) {
		t.Fatalf("expected unlocked before first game")
	}
	if !lock.IsLocked(puck) {
		t.Fatalf("expected locked at first game start")
	}

	lockedAt := puck.Add(-time.Hour)
	early := DayLock{LeagueID: "l1", Day: Day(puck), LocksAt: puck, LockedAt: &lockedAt}
	if !early.IsLocked(puck.Add(-2 * time.Hour)) {
		t.Fatalf("explicit lock must win over the game clock")
	}
}

func TestMatchup_Days(t *testing.T) {
	m := Matchup{
		StartDay: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		EndDay:   time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC),
	}
	days := m.Days()
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if !m.Contains(time.Date(2026, 10, 25, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected end day to be inclusive")
	}
	if m.Contains(time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day after end must be outside")
	}
}

func TestRowsFromEntry(t *testing.T) {
	entry := roster.NewEntry("l1", "t1")
	entry.Players["20"] = roster.Assignment{Status: roster.StatusActive, Slot: roster.SlotGoalie}
	entry.Players["10"] = roster.Assignment{Status: roster.StatusBench}

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rows := RowsFromEntry(entry, "m1", now, now)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].PlayerID != "10" || rows[1].Slot != roster.SlotGoalie {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !rows[0].Day.Equal(Day(now)) || rows[0].Locked {
		t.Fatalf("rows must be day aligned and unlocked: %+v", rows[0])
	}
}

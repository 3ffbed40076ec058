package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
)

type SnapshotRepository struct {
	mu       sync.RWMutex
	matchups map[string][]snapshot.Matchup
	dayLocks map[string]snapshot.DayLock
	rows     map[string]snapshot.Row
}

func NewSnapshotRepository(matchups []snapshot.Matchup) *SnapshotRepository {
	r := &SnapshotRepository{
		matchups: make(map[string][]snapshot.Matchup),
		dayLocks: make(map[string]snapshot.DayLock),
		rows:     make(map[string]snapshot.Row),
	}
	for _, m := range matchups {
		r.matchups[m.LeagueID] = append(r.matchups[m.LeagueID], m)
	}
	for leagueID := range r.matchups {
		items := r.matchups[leagueID]
		sort.Slice(items, func(i, j int) bool { return items[i].StartDay.Before(items[j].StartDay) })
	}
	return r
}

func (r *SnapshotRepository) ListMatchups(_ context.Context, leagueID string) ([]snapshot.Matchup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.matchups[leagueID]
	out := make([]snapshot.Matchup, len(items))
	copy(out, items)
	return out, nil
}

func (r *SnapshotRepository) GetMatchup(_ context.Context, leagueID, matchupID string) (snapshot.Matchup, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.matchups[leagueID] {
		if m.ID == matchupID {
			return m, true, nil
		}
	}
	return snapshot.Matchup{}, false, nil
}

func (r *SnapshotRepository) GetDayLock(_ context.Context, leagueID string, day time.Time) (snapshot.DayLock, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lock, ok := r.dayLocks[dayLockKey(leagueID, day)]
	return lock, ok, nil
}

func (r *SnapshotRepository) UpsertDayLock(_ context.Context, lock snapshot.DayLock) error {
	lock.Day = snapshot.Day(lock.Day)
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayLockKey(lock.LeagueID, lock.Day)
	if existing, ok := r.dayLocks[key]; ok && existing.LockedAt != nil && lock.LockedAt == nil {
		lock.LockedAt = existing.LockedAt
	}
	r.dayLocks[key] = lock
	return nil
}

func (r *SnapshotRepository) ListDay(_ context.Context, teamID, matchupID string, day time.Time) ([]snapshot.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dayRowsLocked(teamID, matchupID, snapshot.Day(day)), nil
}

func (r *SnapshotRepository) ListDays(_ context.Context, teamID, matchupID string) ([]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[time.Time]struct{})
	for _, row := range r.rows {
		if row.TeamID == teamID && row.MatchupID == matchupID {
			seen[row.Day] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for day := range seen {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *SnapshotRepository) ReplaceDay(_ context.Context, teamID, matchupID string, day time.Time, rows []snapshot.Row) (snapshot.ReplaceResult, error) {
	day = snapshot.Day(day)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.dayRowsLocked(teamID, matchupID, day)
	for _, row := range existing {
		if row.Locked {
			return snapshot.ReplaceResult{}, fmt.Errorf("%w: team=%s day=%s", snapshot.ErrDayLocked, teamID, day.Format(time.DateOnly))
		}
	}

	result := snapshot.ReplaceResult{}
	keep := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		row.TeamID, row.MatchupID, row.Day, row.Locked = teamID, matchupID, day, false
		key := row.Key()
		keep[key] = struct{}{}
		if current, ok := r.rows[key]; ok && current.Status == row.Status && current.Slot == row.Slot {
			continue
		}
		r.rows[key] = row
		result.Upserted++
	}
	for _, row := range existing {
		if _, ok := keep[row.Key()]; !ok {
			delete(r.rows, row.Key())
			result.Deleted++
		}
	}
	return result, nil
}

func (r *SnapshotRepository) LockDay(_ context.Context, leagueID string, day time.Time) (int, error) {
	day = snapshot.Day(day)
	r.mu.Lock()
	defer r.mu.Unlock()

	locked := 0
	for key, row := range r.rows {
		if row.LeagueID == leagueID && row.Day.Equal(day) && !row.Locked {
			row.Locked = true
			r.rows[key] = row
			locked++
		}
	}
	return locked, nil
}

func (r *SnapshotRepository) ApplyCorrection(_ context.Context, correction snapshot.Correction, at time.Time) error {
	row := snapshot.Row{
		LeagueID:  correction.LeagueID,
		TeamID:    correction.TeamID,
		MatchupID: correction.MatchupID,
		PlayerID:  correction.PlayerID,
		Day:       snapshot.Day(correction.Day),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := row.Key()
	_, exists := r.rows[key]
	if correction.Remove {
		if !exists {
			return fmt.Errorf("%w: %s", snapshot.ErrRowNotFound, key)
		}
		delete(r.rows, key)
		return nil
	}

	row.Status = correction.Status
	row.Slot = correction.Slot
	row.Locked = true
	row.UpdatedAt = at
	r.rows[key] = row
	return nil
}

func (r *SnapshotRepository) dayRowsLocked(teamID, matchupID string, day time.Time) []snapshot.Row {
	out := make([]snapshot.Row, 0)
	for _, row := range r.rows {
		if row.TeamID == teamID && row.MatchupID == matchupID && row.Day.Equal(day) {
			out = append(out, row)
		}
	}
	snapshot.SortRows(out)
	return out
}

func dayLockKey(leagueID string, day time.Time) string {
	return leagueID + "|" + snapshot.Day(day).Format(time.DateOnly)
}

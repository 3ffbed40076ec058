package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
)

const testMatchupID = testLeagueID + "-w1"

func (h *rosterHarness) day(offset int) time.Time {
	return snapshot.Day(h.now).AddDate(0, 0, offset)
}

func (h *rosterHarness) rows(t *testing.T, teamID string, day time.Time) []snapshot.Row {
	t.Helper()
	rows, err := h.snapshots.ListDay(t.Context(), teamID, testMatchupID, day)
	require.NoError(t, err)
	return rows
}

func rowPlayers(rows []snapshot.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.PlayerID)
	}
	return out
}

func TestSnapshotService_SyncIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10", "p20")

	first, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	// Wednesday through Sunday are mutable, Monday and Tuesday are past.
	assert.Equal(t, SnapshotSyncResult{DaysWritten: 5, DaysSkipped: 2, RowsUpserted: 10}, first)

	before := h.rows(t, "team-a", h.day(1))
	second, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	assert.Zero(t, second.RowsUpserted)
	assert.Zero(t, second.RowsDeleted)
	if diff := cmp.Diff(before, h.rows(t, "team-a", h.day(1))); diff != "" {
		t.Fatalf("second sync changed rows (-first +second):\n%s", diff)
	}
	assert.Empty(t, h.rows(t, "team-a", h.day(-1)), "past days are never written")
}

func TestSnapshotService_SyncFollowsRosterForward(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10", "p20")
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)

	_, err = h.engine.ApplyRosterMove(t.Context(), ApplyRosterMoveInput{LeagueID: testLeagueID, TeamID: "team-a", AddPlayerID: "p30", DropPlayerID: "p10"})
	require.NoError(t, err)

	result, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	assert.Equal(t, 5, result.RowsUpserted)
	assert.Equal(t, 5, result.RowsDeleted)
	assert.Equal(t, []string{"p20", "p30"}, rowPlayers(h.rows(t, "team-a", h.day(0))))
	assert.Equal(t, []string{"p20", "p30"}, rowPlayers(h.rows(t, "team-a", h.day(4))))
}

func TestSnapshotService_LockedDayIsNeverRewritten(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10", "p20")
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)

	locked, err := h.snapshotSvc.LockDay(t.Context(), testLeagueID, h.now)
	require.NoError(t, err)
	assert.Equal(t, 2, locked.RowsLocked)
	todayBefore := h.rows(t, "team-a", h.day(0))

	_, err = h.engine.ApplyRosterMove(t.Context(), ApplyRosterMoveInput{LeagueID: testLeagueID, TeamID: "team-a", AddPlayerID: "p30", DropPlayerID: "p10"})
	require.NoError(t, err)
	result, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	assert.Equal(t, 4, result.DaysWritten)
	assert.Equal(t, 3, result.DaysSkipped)

	if diff := cmp.Diff(todayBefore, h.rows(t, "team-a", h.day(0))); diff != "" {
		t.Fatalf("locked day changed (-before +after):\n%s", diff)
	}
	assert.Equal(t, []string{"p20", "p30"}, rowPlayers(h.rows(t, "team-a", h.day(1))))

	_, err = h.snapshots.ReplaceDay(t.Context(), "team-a", testMatchupID, h.day(0), nil)
	if !errors.Is(err, snapshot.ErrDayLocked) {
		t.Fatalf("store must refuse to rewrite a locked day, got %v", err)
	}
}

func TestSnapshotService_LockedRowsWithoutDayLockAreViolations(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10")
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)

	// Rows for tomorrow frozen without a recorded day lock.
	_, err = h.snapshots.LockDay(t.Context(), testLeagueID, h.day(1))
	require.NoError(t, err)

	violations := testutil.ToFloat64(metrics.SnapshotPolicyViolationsTotal)
	h.add(t, testLeagueID, "team-a", "p20")
	result, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	assert.Equal(t, 4, result.DaysWritten)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.SnapshotPolicyViolationsTotal), violations+1)
	assert.Equal(t, []string{"p10"}, rowPlayers(h.rows(t, "team-a", h.day(1))))
}

func TestSnapshotService_EarlyLockedFutureDayIsNotWritten(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	// team-b has no players, so locking tomorrow leaves it without rows.
	_, err := h.snapshotSvc.LockDay(t.Context(), testLeagueID, h.day(1))
	require.NoError(t, err)
	require.Empty(t, h.rows(t, "team-b", h.day(1)))

	h.add(t, testLeagueID, "team-b", "p40")
	result, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-b")
	require.NoError(t, err)
	assert.Equal(t, 4, result.DaysWritten)
	assert.Equal(t, 3, result.DaysSkipped)
	assert.Empty(t, h.rows(t, "team-b", h.day(1)), "locked future day must stay untouched")
	assert.Equal(t, []string{"p40"}, rowPlayers(h.rows(t, "team-b", h.day(2))))

	_, err = h.snapshotSvc.RepairMissingDays(t.Context(), testLeagueID)
	require.NoError(t, err)
	assert.Empty(t, h.rows(t, "team-b", h.day(1)), "repair must not fill a locked day")
}

func TestSnapshotService_ScheduledLockFreezesTodayAtFirstGame(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10")
	require.NoError(t, h.snapshotSvc.ScheduleDayLock(t.Context(), testLeagueID, h.now.Add(6*time.Hour)))
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)

	h.now = h.now.Add(7 * time.Hour)
	h.add(t, testLeagueID, "team-a", "p20")
	result, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	assert.Equal(t, 4, result.DaysWritten, "today stopped being mutable at first game")
	assert.Equal(t, []string{"p10"}, rowPlayers(h.rows(t, "team-a", h.day(0))))
	assert.Equal(t, []string{"p10", "p20"}, rowPlayers(h.rows(t, "team-a", h.day(1))))
}

func TestSnapshotService_LockDayMaterializesMissingTeams(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10")
	h.add(t, testLeagueID, "team-b", "p40", "p41")
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)

	result, err := h.snapshotSvc.LockDay(t.Context(), testLeagueID, h.now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsMaterialized)
	assert.Equal(t, 3, result.RowsLocked)

	for _, row := range h.rows(t, "team-b", h.day(0)) {
		assert.True(t, row.Locked, "row %s", row.PlayerID)
	}

	daily, err := h.snapshotSvc.GetDailySnapshot(t.Context(), testLeagueID, "team-b", testMatchupID, h.now)
	require.NoError(t, err)
	assert.True(t, daily.Locked)
	assert.Len(t, daily.Rows, 2)
}

func TestSnapshotService_CorrectLockedDay(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10")
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	_, err = h.snapshotSvc.LockDay(t.Context(), testLeagueID, h.now)
	require.NoError(t, err)

	base := CorrectLockedDayInput{
		LeagueID:    testLeagueID,
		TeamID:      "team-a",
		MatchupID:   testMatchupID,
		PlayerID:    "p10",
		Day:         h.now,
		Status:      roster.StatusActive,
		Slot:        roster.SlotCenter,
		ActorUserID: "commissioner",
		Reason:      "lineup submitted before lock",
	}

	noReason := base
	noReason.Reason = ""
	if err := h.snapshotSvc.CorrectLockedDay(t.Context(), noReason); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without reason, got %v", err)
	}

	unlocked := base
	unlocked.Day = h.day(2)
	if err := h.snapshotSvc.CorrectLockedDay(t.Context(), unlocked); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a mutable day, got %v", err)
	}

	outside := base
	outside.Day = h.day(10)
	if err := h.snapshotSvc.CorrectLockedDay(t.Context(), outside); !errors.Is(err, snapshot.ErrDayOutsideWindow) {
		t.Fatalf("expected ErrDayOutsideWindow, got %v", err)
	}

	require.NoError(t, h.snapshotSvc.CorrectLockedDay(t.Context(), base))
	rows := h.rows(t, "team-a", h.day(0))
	require.Len(t, rows, 1)
	assert.Equal(t, roster.StatusActive, rows[0].Status)
	assert.Equal(t, roster.SlotCenter, rows[0].Slot)
	assert.True(t, rows[0].Locked)

	entries := h.ledgerFor(t, testLeagueID, "team-a")
	last := entries[len(entries)-1]
	assert.Equal(t, ledger.ActionCorrection, last.Action)
	assert.Equal(t, "commissioner", last.ActorUserID)
	require.NotNil(t, last.Day)
	assert.Equal(t, h.day(0), *last.Day)

	remove := base
	remove.PlayerID = "p99"
	remove.Remove = true
	if err := h.snapshotSvc.CorrectLockedDay(t.Context(), remove); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing a missing row, got %v", err)
	}

	// Corrections leave the live roster alone.
	entry, err := h.engine.GetRosterEntry(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	assert.Equal(t, roster.StatusBench, entry.Players["p10"].Status)
}

func TestSnapshotService_RepairMissingDays(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10")
	h.add(t, testLeagueID, "team-b", "p40")
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "team-b")
	require.NoError(t, err)

	result, err := h.snapshotSvc.RepairMissingDays(t.Context(), testLeagueID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.TeamsScanned)
	assert.Equal(t, 5, result.DaysRepaired)
	assert.Zero(t, result.TeamsFailed)
	assert.Equal(t, []string{"p10"}, rowPlayers(h.rows(t, "team-a", h.day(3))))

	again, err := h.snapshotSvc.RepairMissingDays(t.Context(), testLeagueID)
	require.NoError(t, err)
	assert.Zero(t, again.DaysRepaired)
}

func TestSnapshotService_UnknownTeam(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	_, err := h.snapshotSvc.SyncDailySnapshotsForTeam(t.Context(), testLeagueID, "nobody")
	if !errors.Is(err, roster.ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
	_, err = h.snapshotSvc.GetDailySnapshot(t.Context(), testLeagueID, "team-a", "no-matchup", h.now)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

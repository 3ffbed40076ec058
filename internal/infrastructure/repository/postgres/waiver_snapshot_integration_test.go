//go:build integration

package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
)

func TestWaiverRepository_ClaimLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewWaiverRepository(db)
	ctx := t.Context()
	now := time.Date(2026, time.October, 21, 12, 0, 0, 0, time.UTC)

	if err := repo.ReplacePriorities(ctx, itLeagueID, []waiver.Priority{
		{TeamID: "team-b", Rank: 1},
		{TeamID: "team-a", Rank: 2},
	}); err != nil {
		t.Fatalf("replace priorities: %v", err)
	}

	claimA := waiver.Claim{ID: "c1", LeagueID: itLeagueID, TeamID: "team-a", AddPlayerID: "p1", CreatedAt: now}
	claimB := waiver.Claim{ID: "c2", LeagueID: itLeagueID, TeamID: "team-b", AddPlayerID: "p1", CreatedAt: now.Add(time.Minute)}
	for _, c := range []waiver.Claim{claimA, claimB} {
		if err := repo.CreateClaim(ctx, c); err != nil {
			t.Fatalf("create claim %s: %v", c.ID, err)
		}
	}

	dup := claimA
	dup.ID = "c3"
	if err := repo.CreateClaim(ctx, dup); !errors.Is(err, waiver.ErrDuplicateClaim) {
		t.Fatalf("expected ErrDuplicateClaim, got %v", err)
	}

	pending, err := repo.ListPendingClaims(ctx, itLeagueID, league.WaiverPolicyRolling, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	ids := []string{}
	for _, c := range pending {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"c2", "c1"}, ids); diff != "" {
		t.Fatalf("unexpected processing order (-want +got):\n%s", diff)
	}

	resolved, err := pending[0].Resolve(nil, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	rotated := waiver.RotateToBack([]waiver.Priority{
		{TeamID: "team-b", Rank: 1},
		{TeamID: "team-a", Rank: 2},
	}, "team-b")
	if err := repo.ResolveClaim(ctx, resolved, rotated); err != nil {
		t.Fatalf("resolve claim: %v", err)
	}
	if err := repo.ResolveClaim(ctx, resolved, []waiver.Priority{{TeamID: "team-b", Rank: 1}, {TeamID: "team-a", Rank: 2}}); !errors.Is(err, waiver.ErrClaimNotPending) {
		t.Fatalf("expected ErrClaimNotPending on second write, got %v", err)
	}
	priorities, err := repo.ListPriorities(ctx, itLeagueID)
	if err != nil {
		t.Fatalf("list priorities: %v", err)
	}
	if diff := cmp.Diff([]string{"team-a", "team-b"}, priorityTeams(priorities)); diff != "" {
		t.Fatalf("rejected resolve must not touch priorities (-want +got):\n%s", diff)
	}

	if err := repo.CreateClaim(ctx, waiver.Claim{ID: "c4", LeagueID: itLeagueID, TeamID: "team-b", AddPlayerID: "p1", CreatedAt: now}); err != nil {
		t.Fatalf("identical claim after the first resolved should be accepted: %v", err)
	}
}

func TestWaiverRepository_PendingClaimsRankedAndLimitedInQuery(t *testing.T) {
	db := newTestDB(t)
	repo := NewWaiverRepository(db)
	ctx := t.Context()
	now := time.Date(2026, time.October, 21, 12, 0, 0, 0, time.UTC)

	if err := repo.ReplacePriorities(ctx, itLeagueID, []waiver.Priority{
		{TeamID: "team-a", Rank: 1},
		{TeamID: "team-b", Rank: 2},
	}); err != nil {
		t.Fatalf("replace priorities: %v", err)
	}
	claims := []waiver.Claim{
		{ID: "b1", LeagueID: itLeagueID, TeamID: "team-b", AddPlayerID: "p1", CreatedAt: now},
		{ID: "a1", LeagueID: itLeagueID, TeamID: "team-a", AddPlayerID: "p2", CreatedAt: now.Add(time.Minute)},
		{ID: "a2", LeagueID: itLeagueID, TeamID: "team-a", AddPlayerID: "p3", CreatedAt: now.Add(2 * time.Minute)},
		{ID: "n1", LeagueID: itLeagueID, TeamID: "team-new", AddPlayerID: "p4", CreatedAt: now.Add(3 * time.Minute)},
		{ID: "x1", LeagueID: "other-league", TeamID: "team-a", AddPlayerID: "p5", CreatedAt: now},
	}
	for _, c := range claims {
		if err := repo.CreateClaim(ctx, c); err != nil {
			t.Fatalf("create claim %s: %v", c.ID, err)
		}
	}

	tests := []struct {
		name   string
		policy league.WaiverPolicy
		limit  int
		want   []string
	}{
		{name: "rolling unranked first", policy: league.WaiverPolicyRolling, limit: 0, want: []string{"n1", "a1", "a2", "b1"}},
		{name: "rolling limited", policy: league.WaiverPolicyRolling, limit: 2, want: []string{"n1", "a1"}},
		{name: "reverse standings", policy: league.WaiverPolicyReverseStandings, limit: 3, want: []string{"b1", "a1", "a2"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pending, err := repo.ListPendingClaims(ctx, itLeagueID, tc.policy, tc.limit)
			if err != nil {
				t.Fatalf("list pending: %v", err)
			}
			ids := []string{}
			for _, c := range pending {
				ids = append(ids, c.ID)
			}
			if diff := cmp.Diff(tc.want, ids); diff != "" {
				t.Fatalf("unexpected order (-want +got):\n%s", diff)
			}
		})
	}

	pending, err := repo.ListPendingClaims(ctx, itLeagueID, league.WaiverPolicyRolling, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	ranks := map[string]int{}
	for _, c := range pending {
		ranks[c.ID] = c.Priority
	}
	if diff := cmp.Diff(map[string]int{"n1": 0, "a1": 1, "a2": 1, "b1": 2}, ranks); diff != "" {
		t.Fatalf("unexpected claim priorities (-want +got):\n%s", diff)
	}
}

func TestWaiverRepository_Wire(t *testing.T) {
	db := newTestDB(t)
	repo := NewWaiverRepository(db)
	ctx := t.Context()
	now := time.Date(2026, time.October, 21, 12, 0, 0, 0, time.UTC)

	for i, playerID := range []string{"p1", "p2"} {
		if err := repo.PlaceOnWire(ctx, waiver.WireEntry{
			LeagueID:        itLeagueID,
			PlayerID:        playerID,
			DroppedByTeamID: "team-a",
			ClearsAt:        now.Add(time.Duration(i*48) * time.Hour),
		}); err != nil {
			t.Fatalf("place on wire: %v", err)
		}
	}

	cleared, err := repo.ClearExpiredWire(ctx, itLeagueID, now)
	if err != nil {
		t.Fatalf("clear expired: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared, got %d", cleared)
	}
	if _, onWire, _ := repo.GetWireEntry(ctx, itLeagueID, "p2"); !onWire {
		t.Fatalf("expected p2 still on wire")
	}
}

func TestSnapshotRepository_LockedDayIsNotRewritten(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := t.Context()
	day := time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC)

	rows := []snapshot.Row{
		{LeagueID: itLeagueID, PlayerID: "p1", Status: roster.StatusActive, Slot: roster.SlotCenter},
		{LeagueID: itLeagueID, PlayerID: "p2", Status: roster.StatusBench},
	}
	got, err := repo.ReplaceDay(ctx, "team-a", itMatchupID, day, rows)
	if err != nil {
		t.Fatalf("replace day: %v", err)
	}
	if got != (snapshot.ReplaceResult{Upserted: 2}) {
		t.Fatalf("unexpected first write: %+v", got)
	}

	again, err := repo.ReplaceDay(ctx, "team-a", itMatchupID, day, rows[:1])
	if err != nil {
		t.Fatalf("replace day again: %v", err)
	}
	if again != (snapshot.ReplaceResult{Deleted: 1}) {
		t.Fatalf("expected unchanged row skipped and p2 deleted, got %+v", again)
	}

	locked, err := repo.LockDay(ctx, itLeagueID, day)
	if err != nil || locked != 1 {
		t.Fatalf("lock day: locked=%d err=%v", locked, err)
	}
	if _, err := repo.ReplaceDay(ctx, "team-a", itMatchupID, day, rows); !errors.Is(err, snapshot.ErrDayLocked) {
		t.Fatalf("expected ErrDayLocked, got %v", err)
	}

	if err := repo.ApplyCorrection(ctx, snapshot.Correction{
		LeagueID:  itLeagueID,
		TeamID:    "team-a",
		MatchupID: itMatchupID,
		PlayerID:  "p1",
		Day:       day,
		Status:    roster.StatusBench,
	}, day.Add(20*time.Hour)); err != nil {
		t.Fatalf("apply correction: %v", err)
	}
	listed, err := repo.ListDay(ctx, "team-a", itMatchupID, day)
	if err != nil {
		t.Fatalf("list day: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != roster.StatusBench || !listed[0].Locked {
		t.Fatalf("unexpected corrected rows: %+v", listed)
	}

	err = repo.ApplyCorrection(ctx, snapshot.Correction{TeamID: "team-a", MatchupID: itMatchupID, PlayerID: "p9", Day: day, Remove: true}, day)
	if !errors.Is(err, snapshot.ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}

func TestSnapshotRepository_DayLockKeepsLockedAt(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := t.Context()
	day := time.Date(2026, time.October, 22, 0, 0, 0, 0, time.UTC)
	lockedAt := day.Add(19 * time.Hour)

	if err := repo.UpsertDayLock(ctx, snapshot.DayLock{LeagueID: itLeagueID, Day: day, LocksAt: lockedAt, LockedAt: &lockedAt}); err != nil {
		t.Fatalf("upsert lock: %v", err)
	}
	if err := repo.UpsertDayLock(ctx, snapshot.DayLock{LeagueID: itLeagueID, Day: day, LocksAt: day.Add(23 * time.Hour)}); err != nil {
		t.Fatalf("reschedule lock: %v", err)
	}

	got, ok, err := repo.GetDayLock(ctx, itLeagueID, day)
	if err != nil || !ok {
		t.Fatalf("get lock: ok=%v err=%v", ok, err)
	}
	if got.LockedAt == nil || !got.LockedAt.Equal(lockedAt) {
		t.Fatalf("expected recorded lock to survive, got %+v", got)
	}
}

func priorityTeams(priorities []waiver.Priority) []string {
	out := make([]string, 0, len(priorities))
	for _, p := range priorities {
		out = append(out, p.TeamID)
	}
	return out
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/lock"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

func (h *rosterHarness) claim(t *testing.T, leagueID, teamID, add, drop string) waiver.Claim {
	t.Helper()
	c, err := h.waiverSvc.SubmitWaiverClaim(t.Context(), SubmitWaiverClaimInput{
		LeagueID:     leagueID,
		TeamID:       teamID,
		AddPlayerID:  add,
		DropPlayerID: drop,
	})
	if err != nil {
		t.Fatalf("submit claim %s for %s: %v", add, teamID, err)
	}
	h.now = h.now.Add(time.Minute)
	return c
}

func rankOrder(priorities []waiver.Priority) []string {
	out := make([]string, len(priorities))
	for _, p := range priorities {
		out[p.Rank-1] = p.TeamID
	}
	return out
}

func TestWaiverService_HigherPriorityWinsContestedPlayer(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	// team-b asks first but team-a holds priority 1.
	losing := h.claim(t, testLeagueID, "team-b", "p77", "")
	winning := h.claim(t, testLeagueID, "team-a", "p77", "")

	result, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), testLeagueID)
	require.NoError(t, err)
	require.False(t, result.Skipped)
	require.Equal(t, 2, result.ProcessedCount)

	assert.Equal(t, winning.ID, result.Outcomes[0].ClaimID)
	assert.Equal(t, waiver.StatusSuccessful, result.Outcomes[0].Status)
	assert.Equal(t, losing.ID, result.Outcomes[1].ClaimID)
	assert.Equal(t, waiver.StatusFailed, result.Outcomes[1].Status)
	assert.Contains(t, result.Outcomes[1].FailureReason, roster.ErrPlayerAlreadyOwned.Error())

	stored, ok, err := h.waivers.GetClaim(t.Context(), testLeagueID, losing.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, waiver.StatusFailed, stored.Status)
	require.NotNil(t, stored.ProcessedAt)

	if diff := cmp.Diff([]string{"team-b", "team-bot", "team-c", "team-a"}, rankOrder(result.Priorities)); diff != "" {
		t.Fatalf("winner must rotate to the back (-want +got):\n%s", diff)
	}
	persisted, err := h.waivers.ListPriorities(t.Context(), testLeagueID)
	require.NoError(t, err)
	require.NoError(t, waiver.ValidateContiguous(persisted))
	assert.Equal(t, rankOrder(result.Priorities), rankOrder(persisted))
}

func TestWaiverService_FailedClaimKeepsPriorityAndBatchContinues(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.add(t, testLeagueID, "team-a", "p10", "p20")
	full := h.claim(t, testLeagueID, "team-a", "p30", "")
	h.claim(t, testLeagueID, "team-b", "p40", "")
	swap := h.claim(t, testLeagueID, "team-a", "p50", "p10")

	result, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), testLeagueID)
	require.NoError(t, err)
	require.Equal(t, 3, result.ProcessedCount)

	byID := make(map[string]waiver.Outcome)
	for _, o := range result.Outcomes {
		byID[o.ClaimID] = o
	}
	assert.Equal(t, waiver.StatusFailed, byID[full.ID].Status)
	assert.True(t, strings.Contains(byID[full.ID].FailureReason, roster.ErrRosterFull.Error()))
	assert.Equal(t, waiver.StatusSuccessful, byID[swap.ID].Status)

	// The first chunk holds both team-a claims. The swap wins and sends
	// team-a back, then team-b wins in the next chunk.
	if diff := cmp.Diff([]string{"team-bot", "team-c", "team-a", "team-b"}, rankOrder(result.Priorities)); diff != "" {
		t.Fatalf("unexpected priorities (-want +got):\n%s", diff)
	}

	entry, err := h.engine.GetRosterEntry(t.Context(), testLeagueID, "team-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"p20", "p50"}, entry.PlayerIDs())
}

func TestWaiverService_SkipsWhenLeagueLockHeld(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	pending := h.claim(t, testLeagueID, "team-a", "p77", "")

	lease, err := h.locker.TryLock(t.Context(), lock.Key("waivers", testLeagueID))
	require.NoError(t, err)

	result, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), testLeagueID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, result.ProcessedCount)

	// Other leagues are not blocked.
	h.claim(t, openLeagueID, "open-1", "q1", "")
	other, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), openLeagueID)
	require.NoError(t, err)
	assert.Equal(t, 1, other.ProcessedCount)

	stored, _, err := h.waivers.GetClaim(t.Context(), testLeagueID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, waiver.StatusPending, stored.Status)

	require.NoError(t, lease.Release(t.Context()))
	result, err = h.waiverSvc.ProcessWaiverBatch(t.Context(), testLeagueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.False(t, h.locker.Held(lock.Key("waivers", testLeagueID)), "lock released after run")
}

func TestWaiverService_DrainsAcrossBatches(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	for _, p := range []string{"q1", "q2", "q3"} {
		h.claim(t, openLeagueID, "open-1", p, "")
	}
	for _, p := range []string{"q4", "q5"} {
		h.claim(t, openLeagueID, "open-2", p, "")
	}

	result, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), openLeagueID)
	require.NoError(t, err)
	require.Equal(t, 5, result.ProcessedCount)
	for _, o := range result.Outcomes {
		assert.Equal(t, waiver.StatusSuccessful, o.Status, "claim %s", o.ClaimID)
	}
	if diff := cmp.Diff([]string{"open-3", "open-2", "open-1"}, rankOrder(result.Priorities)); diff != "" {
		t.Fatalf("unexpected priorities (-want +got):\n%s", diff)
	}

	pending, err := h.waiverSvc.ListClaims(t.Context(), waiver.ClaimFilter{LeagueID: openLeagueID, Status: waiver.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWaiverService_RotationReordersRestOfFetchedClaims(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	// Both open-1 claims come back in the first fetch of two.
	first := h.claim(t, openLeagueID, "open-1", "q1", "")
	late := h.claim(t, openLeagueID, "open-1", "q2", "")
	contested := h.claim(t, openLeagueID, "open-2", "q2", "")

	result, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), openLeagueID)
	require.NoError(t, err)
	require.Equal(t, 3, result.ProcessedCount)

	byID := map[string]waiver.Outcome{}
	for _, o := range result.Outcomes {
		byID[o.ClaimID] = o
	}
	assert.Equal(t, waiver.StatusSuccessful, byID[first.ID].Status)
	assert.Equal(t, waiver.StatusSuccessful, byID[contested.ID].Status, "open-2 outranks open-1 once open-1 has rotated")
	assert.Equal(t, waiver.StatusFailed, byID[late.ID].Status)
	assert.Contains(t, byID[late.ID].FailureReason, roster.ErrPlayerAlreadyOwned.Error())

	entry, err := h.engine.GetRosterEntry(t.Context(), openLeagueID, "open-2")
	require.NoError(t, err)
	assert.True(t, entry.Has("q2"))
	if diff := cmp.Diff([]string{"open-3", "open-1", "open-2"}, rankOrder(result.Priorities)); diff != "" {
		t.Fatalf("unexpected priorities (-want +got):\n%s", diff)
	}
}

// flakyResolveRepo fails the next failures ResolveClaim calls after the
// roster move has already committed.
type flakyResolveRepo struct {
	*memory.WaiverRepository
	failures int
}

func (r *flakyResolveRepo) ResolveClaim(ctx context.Context, claim waiver.Claim, rotated []waiver.Priority) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	return r.WaiverRepository.ResolveClaim(ctx, claim, rotated)
}

func TestWaiverService_RerunAfterFailedResolveDoesNotMoveTwice(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	repo := &flakyResolveRepo{WaiverRepository: h.waivers, failures: 1}
	svc := NewWaiverService(h.leagues, h.teams, repo, h.engine, h.store, h.locker, id.NewUUIDGenerator(), WaiverConfig{BatchSize: 2, MaxBatches: 5}, logging.NewNop())
	svc.now = func() time.Time { return h.now }

	c := h.claim(t, openLeagueID, "open-1", "q1", "")

	_, err := svc.ProcessWaiverBatch(t.Context(), openLeagueID)
	require.Error(t, err)

	stored, ok, err := h.waivers.GetClaim(t.Context(), openLeagueID, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, waiver.StatusPending, stored.Status)
	persisted, err := h.waivers.ListPriorities(t.Context(), openLeagueID)
	require.NoError(t, err)
	assert.Equal(t, []string{"open-1", "open-2", "open-3"}, rankOrder(persisted), "priorities move only with the claim")

	result, err := svc.ProcessWaiverBatch(t.Context(), openLeagueID)
	require.NoError(t, err)
	require.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, waiver.StatusSuccessful, result.Outcomes[0].Status)
	assert.Equal(t, []string{"open-2", "open-3", "open-1"}, rankOrder(result.Priorities))

	moves := 0
	for _, e := range h.ledgerFor(t, openLeagueID, "open-1") {
		if e.Reason == c.LedgerReason() {
			moves++
		}
	}
	assert.Equal(t, 1, moves)
	entry, err := h.engine.GetRosterEntry(t.Context(), openLeagueID, "open-1")
	require.NoError(t, err)
	assert.True(t, entry.Has("q1"))
}

func TestWaiverService_ReverseStandingsServesLastPlaceFirst(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.claim(t, standingsLeagueID, "leader", "s1", "")
	h.claim(t, standingsLeagueID, "middle", "s1", "")
	lastPlace := h.claim(t, standingsLeagueID, "last", "s1", "")

	result, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), standingsLeagueID)
	require.NoError(t, err)
	require.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, lastPlace.ID, result.Outcomes[0].ClaimID)
	assert.Equal(t, waiver.StatusSuccessful, result.Outcomes[0].Status)
	assert.Equal(t, "middle", result.Outcomes[1].TeamID)
	assert.Equal(t, waiver.StatusFailed, result.Outcomes[1].Status)

	if diff := cmp.Diff([]string{"leader", "middle", "last"}, rankOrder(result.Priorities)); diff != "" {
		t.Fatalf("standings order must not rotate (-want +got):\n%s", diff)
	}
}

func TestWaiverService_SuccessfulClaimClearsWire(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	require.NoError(t, h.waiverSvc.PlaceOnWaivers(t.Context(), testLeagueID, "p50", "team-b"))
	entry, ok, err := h.waivers.GetWireEntry(t.Context(), testLeagueID, "p50")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.now.Add(48*time.Hour), entry.ClearsAt)

	h.claim(t, testLeagueID, "team-c", "p50", "")
	_, err = h.waiverSvc.ProcessWaiverBatch(t.Context(), testLeagueID)
	require.NoError(t, err)

	_, ok, err = h.waivers.GetWireEntry(t.Context(), testLeagueID, "p50")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWaiverService_ClearExpiredWaivers(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	require.NoError(t, h.waiverSvc.PlaceOnWaivers(t.Context(), testLeagueID, "p1", "team-a"))
	h.now = h.now.Add(24 * time.Hour)
	require.NoError(t, h.waiverSvc.PlaceOnWaivers(t.Context(), testLeagueID, "p2", "team-a"))
	h.now = h.now.Add(25 * time.Hour)

	cleared, err := h.waiverSvc.ClearExpiredWaivers(t.Context(), testLeagueID)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	// The open league has no waiver period, so drops are free agents.
	require.NoError(t, h.waiverSvc.PlaceOnWaivers(t.Context(), openLeagueID, "q1", "open-1"))
	_, ok, err := h.waivers.GetWireEntry(t.Context(), openLeagueID, "q1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWaiverService_SubmitValidation(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	h.claim(t, testLeagueID, "team-a", "p77", "")

	_, err := h.waiverSvc.SubmitWaiverClaim(t.Context(), SubmitWaiverClaimInput{LeagueID: testLeagueID, TeamID: "team-a", AddPlayerID: "p77"})
	if !errors.Is(err, waiver.ErrDuplicateClaim) {
		t.Fatalf("expected ErrDuplicateClaim, got %v", err)
	}

	_, err = h.waiverSvc.SubmitWaiverClaim(t.Context(), SubmitWaiverClaimInput{LeagueID: testLeagueID, TeamID: "team-a", AddPlayerID: "p77", DropPlayerID: "p10"})
	require.NoError(t, err, "a different drop is a different request")

	_, err = h.waiverSvc.SubmitWaiverClaim(t.Context(), SubmitWaiverClaimInput{LeagueID: testLeagueID, TeamID: "team-a", AddPlayerID: "p1", ActorUserID: "user-b", EnforceOwner: true})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	_, err = h.waiverSvc.SubmitWaiverClaim(t.Context(), SubmitWaiverClaimInput{LeagueID: testLeagueID, TeamID: "nope", AddPlayerID: "p1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = h.waiverSvc.SubmitWaiverClaim(t.Context(), SubmitWaiverClaimInput{LeagueID: testLeagueID, TeamID: "team-a"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWaiverService_OwnerlessTeamClaimFails(t *testing.T) {
	t.Parallel()

	h := newRosterHarness(t)
	botClaim := h.claim(t, testLeagueID, "team-bot", "p77", "")

	result, err := h.waiverSvc.ProcessWaiverBatch(t.Context(), testLeagueID)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, botClaim.ID, result.Outcomes[0].ClaimID)
	assert.Equal(t, waiver.StatusFailed, result.Outcomes[0].Status)
	assert.Contains(t, result.Outcomes[0].FailureReason, roster.ErrTeamHasNoOwner.Error())
}

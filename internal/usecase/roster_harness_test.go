package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/rosterevent"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/lock"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

const (
	testLeagueID      = "test-league"
	openLeagueID      = "open-league"
	standingsLeagueID = "standings-league"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []rosterevent.RosterChanged
}

func (p *capturePublisher) PublishRosterChanged(_ context.Context, event rosterevent.RosterChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Events() []rosterevent.RosterChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]rosterevent.RosterChanged(nil), p.events...)
}

type rosterHarness struct {
	leagues   *memory.LeagueRepository
	teams     *memory.TeamRepository
	store     *memory.RosterStore
	waivers   *memory.WaiverRepository
	snapshots *memory.SnapshotRepository
	locker    *lock.MemoryLocker
	events    *capturePublisher

	engine      *RosterEngine
	waiverSvc   *WaiverService
	snapshotSvc *SnapshotService

	now time.Time
}

func testOwner(v string) *string { return &v }

func harnessLeagues() []league.League {
	return []league.League{
		{ID: testLeagueID, Name: "Test League", Season: "2026", RosterLimit: 2, WaiverPolicy: league.WaiverPolicyRolling, WaiverPeriod: 48 * time.Hour},
		{ID: openLeagueID, Name: "Open League", Season: "2026", RosterLimit: 200, WaiverPolicy: league.WaiverPolicyRolling},
		{ID: standingsLeagueID, Name: "Standings League", Season: "2026", RosterLimit: 4, WaiverPolicy: league.WaiverPolicyReverseStandings},
	}
}

func harnessTeams() []team.Team {
	return []team.Team{
		{ID: "team-a", LeagueID: testLeagueID, Name: "A", OwnerUserID: testOwner("user-a"), StandingRank: 1},
		{ID: "team-b", LeagueID: testLeagueID, Name: "B", OwnerUserID: testOwner("user-b"), StandingRank: 2},
		{ID: "team-c", LeagueID: testLeagueID, Name: "C", OwnerUserID: testOwner("user-c"), StandingRank: 3},
		{ID: "team-bot", LeagueID: testLeagueID, Name: "Bot", StandingRank: 4},
		{ID: "open-1", LeagueID: openLeagueID, Name: "Open 1", OwnerUserID: testOwner("user-1")},
		{ID: "open-2", LeagueID: openLeagueID, Name: "Open 2", OwnerUserID: testOwner("user-2")},
		{ID: "open-3", LeagueID: openLeagueID, Name: "Open 3", OwnerUserID: testOwner("user-3")},
		{ID: "leader", LeagueID: standingsLeagueID, Name: "Leader", OwnerUserID: testOwner("user-l"), StandingRank: 1},
		{ID: "middle", LeagueID: standingsLeagueID, Name: "Middle", OwnerUserID: testOwner("user-m"), StandingRank: 2},
		{ID: "last", LeagueID: standingsLeagueID, Name: "Last", OwnerUserID: testOwner("user-z"), StandingRank: 3},
	}
}

// newRosterHarness wires every service over the in-memory stores with a
// fixed clock at a Wednesday noon.
func newRosterHarness(t *testing.T) *rosterHarness {
	t.Helper()

	now := time.Date(2026, time.October, 21, 12, 0, 0, 0, time.UTC)
	h := &rosterHarness{
		leagues:   memory.NewLeagueRepository(harnessLeagues()),
		teams:     memory.NewTeamRepository(harnessTeams()),
		store:     memory.NewRosterStore(),
		waivers:   memory.NewWaiverRepository(),
		snapshots: memory.NewSnapshotRepository(harnessMatchups(now)),
		locker:    lock.NewMemoryLocker(),
		events:    &capturePublisher{},
		now:       now,
	}
	clock := func() time.Time { return h.now }
	logger := logging.NewNop()
	idGen := id.NewUUIDGenerator()

	h.engine = NewRosterEngine(h.leagues, h.teams, h.store, h.store, h.waivers, h.events, idGen, logger)
	h.engine.now = clock
	h.waiverSvc = NewWaiverService(h.leagues, h.teams, h.waivers, h.engine, h.store, h.locker, idGen, WaiverConfig{BatchSize: 2, MaxBatches: 5}, logger)
	h.waiverSvc.now = clock
	h.snapshotSvc = NewSnapshotService(h.leagues, h.teams, h.store, h.snapshots, h.store, idGen, SnapshotConfig{RepairWorkers: 2}, logger)
	h.snapshotSvc.now = clock
	return h
}

// harnessMatchups gives every league one matchup from Monday to Sunday of
// the harness week.
func harnessMatchups(now time.Time) []snapshot.Matchup {
	monday := snapshot.Day(now).AddDate(0, 0, -2)
	out := make([]snapshot.Matchup, 0)
	for _, lg := range harnessLeagues() {
		out = append(out, snapshot.Matchup{
			ID:       lg.ID + "-w1",
			LeagueID: lg.ID,
			StartDay: monday,
			EndDay:   monday.AddDate(0, 0, 6),
		})
	}
	return out
}

func (h *rosterHarness) add(t *testing.T, leagueID, teamID string, players ...string) {
	t.Helper()
	for _, playerID := range players {
		if _, err := h.engine.ApplyRosterMove(t.Context(), ApplyRosterMoveInput{
			LeagueID:    leagueID,
			TeamID:      teamID,
			AddPlayerID: playerID,
			Source:      ledger.SourceAdmin,
			ActorUserID: "admin",
		}); err != nil {
			t.Fatalf("seed %s on %s: %v", playerID, teamID, err)
		}
	}
}

func (h *rosterHarness) ledgerFor(t *testing.T, leagueID, teamID string) []ledger.Entry {
	t.Helper()
	items, err := h.store.ListByTeam(t.Context(), leagueID, teamID, 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return items
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
)

func addInTx(ctx context.Context, store *RosterStore, teamID, playerID, entryID string) error {
	return store.WithTeamLock(ctx, itLeagueID, teamID, func(ctx context.Context, tx roster.Tx) error {
		next, err := roster.ApplyMove(tx.Entry(), roster.Move{AddPlayerID: playerID}, 2)
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, next); err != nil {
			return err
		}
		return tx.AppendLedger(ctx, ledger.Entry{
			ID:            entryID,
			LeagueID:      itLeagueID,
			TeamID:        teamID,
			Action:        ledger.ActionMove,
			AddedPlayerID: playerID,
			AddedStatus:   string(roster.StatusBench),
			Source:        ledger.SourceAdmin,
			ActorUserID:   "admin",
			CreatedAt:     time.Now().UTC(),
		})
	})
}

func TestRosterStore_CommitsRosterAndLedgerTogether(t *testing.T) {
	db := newTestDB(t)
	store := NewRosterStore(db)
	ctx := t.Context()

	if err := addInTx(ctx, store, "team-a", "p10", "e1"); err != nil {
		t.Fatalf("add p10: %v", err)
	}

	rolledBack := store.WithTeamLock(ctx, itLeagueID, "team-a", func(ctx context.Context, tx roster.Tx) error {
		next, err := roster.ApplyMove(tx.Entry(), roster.Move{AddPlayerID: "p20"}, 2)
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, next); err != nil {
			return err
		}
		return errors.New("abort after save")
	})
	if rolledBack == nil {
		t.Fatalf("expected aborted transaction error")
	}

	entry, err := store.GetEntry(ctx, itLeagueID, "team-a")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if diff := cmp.Diff([]string{"p10"}, entry.PlayerIDs()); diff != "" {
		t.Fatalf("aborted save leaked (-want +got):\n%s", diff)
	}

	entries, err := store.ListByTeam(ctx, itLeagueID, "team-a", 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e1" || entries[0].Seq == 0 {
		t.Fatalf("unexpected ledger: %+v", entries)
	}
}

func TestRosterStore_PlayerOwnedOncePerLeague(t *testing.T) {
	db := newTestDB(t)
	store := NewRosterStore(db)
	ctx := t.Context()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i, teamID := range []string{"team-a", "team-b", "team-bot"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := addInTx(ctx, store, teamID, "p99", "race-"+string(rune('a'+i)))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, roster.ErrPlayerAlreadyOwned):
			t.Fatalf("expected ErrPlayerAlreadyOwned, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one owner, got %d", succeeded)
	}

	owner, owned, err := store.OwnerOf(ctx, itLeagueID, "p99")
	if err != nil || !owned || owner == "" {
		t.Fatalf("expected p99 owned, got owner=%q owned=%v err=%v", owner, owned, err)
	}
}

func TestRosterStore_UnknownTeam(t *testing.T) {
	db := newTestDB(t)
	err := addInTx(t.Context(), NewRosterStore(db), "ghost", "p1", "e1")
	if !errors.Is(err, roster.ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestRosterStore_CorrectionEntryKeepsDay(t *testing.T) {
	db := newTestDB(t)
	store := NewRosterStore(db)
	day := time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC)

	if err := store.Append(t.Context(), ledger.Entry{
		ID:            "corr-1",
		LeagueID:      itLeagueID,
		TeamID:        "team-b",
		Action:        ledger.ActionCorrection,
		AddedPlayerID: "p5",
		ActorUserID:   "commissioner",
		Reason:        "scorer fix",
		Source:        ledger.SourceAdmin,
		MatchupID:     itMatchupID,
		Day:           &day,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("append correction: %v", err)
	}

	entries, err := store.ListByTeam(t.Context(), itLeagueID, "team-b", 1)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].Day == nil || !entries[0].Day.Equal(day) {
		t.Fatalf("expected correction with day %s, got %+v", day, entries)
	}
}

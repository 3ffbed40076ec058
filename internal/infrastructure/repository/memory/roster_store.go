package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
)

type teamKey struct {
	leagueID string
	teamID   string
}

// RosterStore keeps rosters and their ledger together so a team transaction
// can commit both at once. Team transactions serialize on a per-team mutex;
// league wide player ownership is re-checked under the store lock at commit.
type RosterStore struct {
	mu      sync.RWMutex
	entries map[teamKey]roster.Entry
	owners  map[string]map[string]string
	ledger  map[teamKey][]ledger.Entry
	seq     int64

	locksMu   sync.Mutex
	teamLocks map[teamKey]*sync.Mutex
}

func NewRosterStore() *RosterStore {
	return &RosterStore{
		entries:   make(map[teamKey]roster.Entry),
		owners:    make(map[string]map[string]string),
		ledger:    make(map[teamKey][]ledger.Entry),
		teamLocks: make(map[teamKey]*sync.Mutex),
	}
}

func (r *RosterStore) GetEntry(_ context.Context, leagueID, teamID string) (roster.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entryLocked(teamKey{leagueID, teamID}), nil
}

func (r *RosterStore) ListEntries(_ context.Context, leagueID string) ([]roster.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]roster.Entry, 0)
	for key, entry := range r.entries {
		if key.leagueID == leagueID {
			out = append(out, entry.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (r *RosterStore) OwnerOf(_ context.Context, leagueID, playerID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	teamID, ok := r.owners[leagueID][playerID]
	return teamID, ok, nil
}

func (r *RosterStore) WithTeamLock(ctx context.Context, leagueID, teamID string, fn func(ctx context.Context, tx roster.Tx) error) error {
	key := teamKey{leagueID, teamID}
	m := r.teamMutex(key)
	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	tx := &rosterTx{store: r, key: key, entry: r.entryLocked(key)}
	r.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return r.commit(tx)
}

// ListByTeam implements ledger.Reader.
func (r *RosterStore) ListByTeam(_ context.Context, leagueID, teamID string, limit int) ([]ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.ledger[teamKey{leagueID, teamID}]
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	out := make([]ledger.Entry, len(items))
	copy(out, items)
	return out, nil
}

func (r *RosterStore) FindByReason(_ context.Context, leagueID, teamID, reason string) (ledger.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.ledger[teamKey{leagueID, teamID}]
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Reason == reason {
			return items[i], true, nil
		}
	}
	return ledger.Entry{}, false, nil
}

// Append writes a ledger entry outside a roster transaction.
func (r *RosterStore) Append(_ context.Context, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLocked(entry)
	return nil
}

func (r *RosterStore) commit(tx *rosterTx) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.saved != nil {
		owners := r.owners[tx.key.leagueID]
		for playerID := range tx.saved.Players {
			if owner, ok := owners[playerID]; ok && owner != tx.key.teamID {
				return fmt.Errorf("%w: player=%s team=%s", roster.ErrPlayerAlreadyOwned, playerID, owner)
			}
		}

		if owners == nil {
			owners = make(map[string]string)
			r.owners[tx.key.leagueID] = owners
		}
		previous := r.entries[tx.key]
		for playerID := range previous.Players {
			if !tx.saved.Has(playerID) {
				delete(owners, playerID)
			}
		}
		for playerID := range tx.saved.Players {
			owners[playerID] = tx.key.teamID
		}
		r.entries[tx.key] = tx.saved.Clone()
	}

	for _, entry := range tx.ledger {
		r.appendLocked(entry)
	}
	return nil
}

func (r *RosterStore) appendLocked(entry ledger.Entry) {
	r.seq++
	entry.Seq = r.seq
	key := teamKey{entry.LeagueID, entry.TeamID}
	r.ledger[key] = append(r.ledger[key], entry)
}

func (r *RosterStore) entryLocked(key teamKey) roster.Entry {
	entry, ok := r.entries[key]
	if !ok {
		return roster.NewEntry(key.leagueID, key.teamID)
	}
	return entry.Clone()
}

func (r *RosterStore) teamMutex(key teamKey) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	m, ok := r.teamLocks[key]
	if !ok {
		m = &sync.Mutex{}
		r.teamLocks[key] = m
	}
	return m
}

type rosterTx struct {
	store  *RosterStore
	key    teamKey
	entry  roster.Entry
	saved  *roster.Entry
	ledger []ledger.Entry
}

func (t *rosterTx) Entry() roster.Entry {
	if t.saved != nil {
		return t.saved.Clone()
	}
	return t.entry.Clone()
}

func (t *rosterTx) OwnerOf(ctx context.Context, playerID string) (string, bool, error) {
	if t.saved != nil && t.saved.Has(playerID) {
		return t.key.teamID, true, nil
	}
	return t.store.OwnerOf(ctx, t.key.leagueID, playerID)
}

func (t *rosterTx) Save(_ context.Context, entry roster.Entry) error {
	if entry.LeagueID != t.key.leagueID || entry.TeamID != t.key.teamID {
		return fmt.Errorf("roster entry %s/%s saved in transaction for %s/%s", entry.LeagueID, entry.TeamID, t.key.leagueID, t.key.teamID)
	}
	saved := entry.Clone()
	t.saved = &saved
	return nil
}

func (t *rosterTx) AppendLedger(_ context.Context, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.LeagueID != t.key.leagueID || entry.TeamID != t.key.teamID {
		return fmt.Errorf("ledger entry for %s/%s appended in transaction for %s/%s", entry.LeagueID, entry.TeamID, t.key.leagueID, t.key.teamID)
	}
	t.ledger = append(t.ledger, entry)
	return nil
}

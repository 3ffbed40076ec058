package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
)

type WaiverRepository struct {
	mu         sync.RWMutex
	claims     map[string]waiver.Claim
	priorities map[string][]waiver.Priority
	wire       map[string]map[string]waiver.WireEntry
}

func NewWaiverRepository() *WaiverRepository {
	return &WaiverRepository{
		claims:     make(map[string]waiver.Claim),
		priorities: make(map[string][]waiver.Priority),
		wire:       make(map[string]map[string]waiver.WireEntry),
	}
}

func (r *WaiverRepository) CreateClaim(_ context.Context, claim waiver.Claim) error {
	if err := claim.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.claims[claim.ID]; exists {
		return fmt.Errorf("claim %s already exists", claim.ID)
	}
	for _, existing := range r.claims {
		if existing.Status == waiver.StatusPending && existing.SameRequest(claim) {
			return fmt.Errorf("%w: claim=%s", waiver.ErrDuplicateClaim, existing.ID)
		}
	}
	claim.Status = waiver.StatusPending
	claim.Priority = 0
	r.claims[claim.ID] = claim
	return nil
}

func (r *WaiverRepository) GetClaim(_ context.Context, leagueID, claimID string) (waiver.Claim, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[claimID]
	if !ok || claim.LeagueID != leagueID {
		return waiver.Claim{}, false, nil
	}
	claim.Priority = waiver.RankMap(r.priorities[leagueID])[claim.TeamID]
	return claim, true, nil
}

func (r *WaiverRepository) ListPendingClaims(_ context.Context, leagueID string, policy league.WaiverPolicy, limit int) ([]waiver.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ranks := waiver.RankMap(r.priorities[leagueID])
	out := make([]waiver.Claim, 0)
	for _, claim := range r.claims {
		if claim.LeagueID != leagueID || claim.Status != waiver.StatusPending {
			continue
		}
		claim.Priority = ranks[claim.TeamID]
		out = append(out, claim)
	}
	waiver.SortClaims(out, ranks, policy)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *WaiverRepository) ListClaims(_ context.Context, filter waiver.ClaimFilter) ([]waiver.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ranks := waiver.RankMap(r.priorities[filter.LeagueID])
	out := make([]waiver.Claim, 0)
	for _, claim := range r.claims {
		if claim.LeagueID != filter.LeagueID {
			continue
		}
		if filter.TeamID != "" && claim.TeamID != filter.TeamID {
			continue
		}
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		claim.Priority = ranks[claim.TeamID]
		out = append(out, claim)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *WaiverRepository) ResolveClaim(_ context.Context, claim waiver.Claim, rotated []waiver.Priority) error {
	if !claim.Status.Terminal() {
		return fmt.Errorf("claim %s must be resolved before it is stored", claim.ID)
	}
	if rotated != nil {
		if err := waiver.ValidateContiguous(rotated); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.claims[claim.ID]
	if !ok {
		return fmt.Errorf("%w: claim=%s", waiver.ErrClaimNotFound, claim.ID)
	}
	if current.Status != waiver.StatusPending {
		return fmt.Errorf("%w: claim=%s status=%s", waiver.ErrClaimNotPending, claim.ID, current.Status)
	}
	current.Status = claim.Status
	current.FailureReason = claim.FailureReason
	current.ProcessedAt = claim.ProcessedAt
	r.claims[claim.ID] = current
	if rotated != nil {
		r.priorities[current.LeagueID] = rankedCopy(current.LeagueID, rotated)
	}
	return nil
}

func (r *WaiverRepository) ListPriorities(_ context.Context, leagueID string) ([]waiver.Priority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.priorities[leagueID]
	out := make([]waiver.Priority, len(items))
	copy(out, items)
	return out, nil
}

func (r *WaiverRepository) ReplacePriorities(_ context.Context, leagueID string, priorities []waiver.Priority) error {
	if err := waiver.ValidateContiguous(priorities); err != nil {
		return err
	}

	r.mu.Lock()
	r.priorities[leagueID] = rankedCopy(leagueID, priorities)
	r.mu.Unlock()
	return nil
}

func rankedCopy(leagueID string, priorities []waiver.Priority) []waiver.Priority {
	items := make([]waiver.Priority, len(priorities))
	copy(items, priorities)
	sort.Slice(items, func(i, j int) bool { return items[i].Rank < items[j].Rank })
	for i := range items {
		items[i].LeagueID = leagueID
	}
	return items
}

func (r *WaiverRepository) PlaceOnWire(_ context.Context, entry waiver.WireEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPlayer := r.wire[entry.LeagueID]
	if byPlayer == nil {
		byPlayer = make(map[string]waiver.WireEntry)
		r.wire[entry.LeagueID] = byPlayer
	}
	byPlayer[entry.PlayerID] = entry
	return nil
}

func (r *WaiverRepository) GetWireEntry(_ context.Context, leagueID, playerID string) (waiver.WireEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.wire[leagueID][playerID]
	return entry, ok, nil
}

func (r *WaiverRepository) ClearWire(_ context.Context, leagueID, playerID string) error {
	r.mu.Lock()
	delete(r.wire[leagueID], playerID)
	r.mu.Unlock()
	return nil
}

func (r *WaiverRepository) ClearExpiredWire(_ context.Context, leagueID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := 0
	for playerID, entry := range r.wire[leagueID] {
		if !entry.Active(now) {
			delete(r.wire[leagueID], playerID)
			cleared++
		}
	}
	return cleared, nil
}

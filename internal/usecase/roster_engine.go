package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/rosterevent"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	"github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
)

type ApplyRosterMoveInput struct {
	LeagueID     string
	TeamID       string
	AddPlayerID  string
	DropPlayerID string
	Status       roster.Status
	Slot         roster.Slot
	Reason       string
	Source       ledger.Source
	ActorUserID  string
	// EnforceOwner rejects actors other than the team owner.
	EnforceOwner bool
}

type RosterMoveResult struct {
	AppliedAdd  string       `json:"applied_add"`
	AppliedDrop string       `json:"applied_drop,omitempty"`
	Entry       roster.Entry `json:"-"`
	LedgerEntry ledger.Entry `json:"-"`
}

type MovePlayerSlotInput struct {
	LeagueID     string
	TeamID       string
	PlayerID     string
	Status       roster.Status
	Slot         roster.Slot
	Reason       string
	Source       ledger.Source
	ActorUserID  string
	EnforceOwner bool
}

type ReconcileRosterInput struct {
	LeagueID    string
	TeamID      string
	DryRun      bool
	ActorUserID string
	Reason      string
}

type ReconcileRosterResult struct {
	LeagueID string          `json:"league_id"`
	TeamID   string          `json:"team_id"`
	DryRun   bool            `json:"dry_run"`
	Applied  bool            `json:"applied"`
	Changes  []roster.Change `json:"changes"`
}

// RosterEngine is the single write path for live rosters.
type RosterEngine struct {
	leagueRepo league.Repository
	teamRepo   team.Repository
	store      roster.Store
	ledgerRepo ledger.Reader
	wireRepo   waiver.WireRepository
	publisher  rosterevent.Publisher
	idGen      id.Generator
	logger     *logging.Logger
	now        func() time.Time
}

func NewRosterEngine(
	leagueRepo league.Repository,
	teamRepo team.Repository,
	store roster.Store,
	ledgerRepo ledger.Reader,
	wireRepo waiver.WireRepository,
	publisher rosterevent.Publisher,
	idGen id.Generator,
	logger *logging.Logger,
) *RosterEngine {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewUUIDGenerator()
	}

	return &RosterEngine{
		leagueRepo: leagueRepo,
		teamRepo:   teamRepo,
		store:      store,
		ledgerRepo: ledgerRepo,
		wireRepo:   wireRepo,
		publisher:  publisher,
		idGen:      idGen,
		logger:     logger,
		now:        time.Now,
	}
}

// ApplyRosterMove adds one player, optionally dropping another first, as a
// single atomic change with exactly one ledger entry.
func (s *RosterEngine) ApplyRosterMove(ctx context.Context, input ApplyRosterMoveInput) (result RosterMoveResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterEngine.ApplyRosterMove",
		attribute.String("league_id", input.LeagueID),
		attribute.String("team_id", input.TeamID),
	)
	started := s.now()
	defer func() {
		source := string(input.Source)
		metrics.RosterMovesTotal.WithLabelValues(source, moveOutcome(err)).Inc()
		metrics.RosterMoveLatency.WithLabelValues(source).Observe(s.now().Sub(started).Seconds())
		endSpan(span, err)
	}()

	input.LeagueID = strings.TrimSpace(input.LeagueID)
	input.TeamID = strings.TrimSpace(input.TeamID)
	input.AddPlayerID = strings.TrimSpace(input.AddPlayerID)
	input.DropPlayerID = strings.TrimSpace(input.DropPlayerID)
	input.Reason = strings.TrimSpace(input.Reason)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)
	if input.Source == "" {
		input.Source = ledger.SourceManual
	}

	if input.LeagueID == "" || input.TeamID == "" {
		return RosterMoveResult{}, fmt.Errorf("%w: league_id and team_id are required", ErrInvalidInput)
	}
	if input.AddPlayerID == "" {
		return RosterMoveResult{}, fmt.Errorf("%w: add_player_id is required", ErrInvalidInput)
	}
	if input.AddPlayerID == input.DropPlayerID {
		return RosterMoveResult{}, fmt.Errorf("%w: cannot add and drop the same player", ErrInvalidInput)
	}
	if !input.Source.Valid() {
		return RosterMoveResult{}, fmt.Errorf("%w: unsupported source %q", ErrInvalidInput, input.Source)
	}
	placement, err := parsePlacement(input.Status, input.Slot)
	if err != nil {
		return RosterMoveResult{}, err
	}

	lg, tm, err := s.resolveLeagueTeam(ctx, input.LeagueID, input.TeamID, input.EnforceOwner)
	if err != nil {
		return RosterMoveResult{}, err
	}
	actor, err := resolveActor(tm, input.Source, input.ActorUserID, input.EnforceOwner)
	if err != nil {
		return RosterMoveResult{}, err
	}

	now := s.now().UTC()
	if input.Source == ledger.SourceManual {
		if err := s.ensureNotOnWaivers(ctx, input.LeagueID, input.AddPlayerID, now); err != nil {
			return RosterMoveResult{}, err
		}
	}

	entryID, err := s.idGen.NewID()
	if err != nil {
		return RosterMoveResult{}, fmt.Errorf("generate ledger entry id: %w", err)
	}
	ledgerEntry := ledger.Entry{
		ID:              entryID,
		LeagueID:        input.LeagueID,
		TeamID:          input.TeamID,
		Action:          ledger.ActionMove,
		AddedPlayerID:   input.AddPlayerID,
		DroppedPlayerID: input.DropPlayerID,
		ActorUserID:     actor,
		Reason:          input.Reason,
		Source:          input.Source,
		CreatedAt:       now,
	}

	var next roster.Entry
	err = s.store.WithTeamLock(ctx, input.LeagueID, input.TeamID, func(ctx context.Context, tx roster.Tx) error {
		ownerTeamID, owned, err := tx.OwnerOf(ctx, input.AddPlayerID)
		if err != nil {
			return fmt.Errorf("check player ownership: %w", err)
		}
		if owned {
			return fmt.Errorf("%w: player=%s team=%s", roster.ErrPlayerAlreadyOwned, input.AddPlayerID, ownerTeamID)
		}

		next, err = roster.ApplyMove(tx.Entry(), roster.Move{
			AddPlayerID:  input.AddPlayerID,
			DropPlayerID: input.DropPlayerID,
			Placement:    placement,
		}, lg.RosterLimit)
		if err != nil {
			return err
		}
		next.UpdatedAt = now

		added := next.Players[input.AddPlayerID]
		ledgerEntry.AddedStatus = string(added.Status)
		ledgerEntry.AddedSlot = string(added.Slot)

		if err := tx.Save(ctx, next); err != nil {
			return err
		}
		return tx.AppendLedger(ctx, ledgerEntry)
	})
	if err != nil {
		return RosterMoveResult{}, err
	}

	s.logger.InfoContext(ctx, "roster move applied",
		"league_id", input.LeagueID,
		"team_id", input.TeamID,
		"add_player_id", input.AddPlayerID,
		"drop_player_id", input.DropPlayerID,
		"source", input.Source,
		"ledger_entry_id", ledgerEntry.ID,
	)
	s.publish(ctx, ledgerEntry)

	return RosterMoveResult{
		AppliedAdd:  input.AddPlayerID,
		AppliedDrop: input.DropPlayerID,
		Entry:       next,
		LedgerEntry: ledgerEntry,
	}, nil
}

// MovePlayerSlot changes the status or slot of a player the team already owns.
func (s *RosterEngine) MovePlayerSlot(ctx context.Context, input MovePlayerSlotInput) (entry roster.Entry, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterEngine.MovePlayerSlot")
	defer func() { endSpan(span, err) }()

	input.LeagueID = strings.TrimSpace(input.LeagueID)
	input.TeamID = strings.TrimSpace(input.TeamID)
	input.PlayerID = strings.TrimSpace(input.PlayerID)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)
	if input.Source == "" {
		input.Source = ledger.SourceManual
	}
	if input.LeagueID == "" || input.TeamID == "" || input.PlayerID == "" {
		return roster.Entry{}, fmt.Errorf("%w: league_id, team_id and player_id are required", ErrInvalidInput)
	}
	if input.Status == "" {
		return roster.Entry{}, fmt.Errorf("%w: status is required", ErrInvalidInput)
	}
	placement, err := parsePlacement(input.Status, input.Slot)
	if err != nil {
		return roster.Entry{}, err
	}

	lg, tm, err := s.resolveLeagueTeam(ctx, input.LeagueID, input.TeamID, input.EnforceOwner)
	if err != nil {
		return roster.Entry{}, err
	}
	actor, err := resolveActor(tm, input.Source, input.ActorUserID, input.EnforceOwner)
	if err != nil {
		return roster.Entry{}, err
	}

	entryID, err := s.idGen.NewID()
	if err != nil {
		return roster.Entry{}, fmt.Errorf("generate ledger entry id: %w", err)
	}
	now := s.now().UTC()
	ledgerEntry := ledger.Entry{
		ID:            entryID,
		LeagueID:      input.LeagueID,
		TeamID:        input.TeamID,
		Action:        ledger.ActionSlotChange,
		AddedPlayerID: input.PlayerID,
		ActorUserID:   actor,
		Reason:        strings.TrimSpace(input.Reason),
		Source:        input.Source,
		CreatedAt:     now,
	}

	var next roster.Entry
	err = s.store.WithTeamLock(ctx, input.LeagueID, input.TeamID, func(ctx context.Context, tx roster.Tx) error {
		updated, err := roster.ApplySlotChange(tx.Entry(), input.PlayerID, placement, lg.RosterLimit)
		if err != nil {
			return err
		}
		updated.UpdatedAt = now
		next = updated

		moved := next.Players[input.PlayerID]
		ledgerEntry.AddedStatus = string(moved.Status)
		ledgerEntry.AddedSlot = string(moved.Slot)
		if err := tx.Save(ctx, next); err != nil {
			return err
		}
		return tx.AppendLedger(ctx, ledgerEntry)
	})
	if err != nil {
		return roster.Entry{}, err
	}

	s.publish(ctx, ledgerEntry)
	return next, nil
}

func (s *RosterEngine) GetRosterEntry(ctx context.Context, leagueID, teamID string) (roster.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterEngine.GetRosterEntry")
	defer span.End()

	leagueID = strings.TrimSpace(leagueID)
	teamID = strings.TrimSpace(teamID)
	if leagueID == "" || teamID == "" {
		return roster.Entry{}, fmt.Errorf("%w: league_id and team_id are required", ErrInvalidInput)
	}
	if _, _, err := s.resolveLeagueTeam(ctx, leagueID, teamID, false); err != nil {
		return roster.Entry{}, err
	}

	entry, err := s.store.GetEntry(ctx, leagueID, teamID)
	if err != nil {
		return roster.Entry{}, fmt.Errorf("get roster entry: %w", err)
	}
	return entry, nil
}

func (s *RosterEngine) ListLedger(ctx context.Context, leagueID, teamID string, limit int) ([]ledger.Entry, error) {
	leagueID = strings.TrimSpace(leagueID)
	teamID = strings.TrimSpace(teamID)
	if leagueID == "" || teamID == "" {
		return nil, fmt.Errorf("%w: league_id and team_id are required", ErrInvalidInput)
	}
	if _, _, err := s.resolveLeagueTeam(ctx, leagueID, teamID, false); err != nil {
		return nil, err
	}

	items, err := s.ledgerRepo.ListByTeam(ctx, leagueID, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return items, nil
}

// ReconcileFromLedger re-derives the live roster from the team ledger. It is
// only ever run on operator request.
func (s *RosterEngine) ReconcileFromLedger(ctx context.Context, input ReconcileRosterInput) (result ReconcileRosterResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterEngine.ReconcileFromLedger")
	defer func() { endSpan(span, err) }()

	input.LeagueID = strings.TrimSpace(input.LeagueID)
	input.TeamID = strings.TrimSpace(input.TeamID)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)
	input.Reason = strings.TrimSpace(input.Reason)
	if input.LeagueID == "" || input.TeamID == "" {
		return ReconcileRosterResult{}, fmt.Errorf("%w: league_id and team_id are required", ErrInvalidInput)
	}
	if !input.DryRun && input.ActorUserID == "" {
		return ReconcileRosterResult{}, fmt.Errorf("%w: actor is required to apply a reconcile", ErrInvalidInput)
	}
	if _, _, err := s.resolveLeagueTeam(ctx, input.LeagueID, input.TeamID, false); err != nil {
		return ReconcileRosterResult{}, err
	}

	result = ReconcileRosterResult{LeagueID: input.LeagueID, TeamID: input.TeamID, DryRun: input.DryRun}
	now := s.now().UTC()
	var marker ledger.Entry

	err = s.store.WithTeamLock(ctx, input.LeagueID, input.TeamID, func(ctx context.Context, tx roster.Tx) error {
		history, err := s.ledgerRepo.ListByTeam(ctx, input.LeagueID, input.TeamID, 0)
		if err != nil {
			return fmt.Errorf("list ledger for reconcile: %w", err)
		}
		live := tx.Entry()
		replayed := roster.Replay(input.LeagueID, input.TeamID, history)
		result.Changes = roster.Diff(live, replayed)
		if input.DryRun || len(result.Changes) == 0 {
			return nil
		}

		for _, change := range result.Changes {
			if change.Before != nil || change.After == nil {
				continue
			}
			ownerTeamID, owned, err := tx.OwnerOf(ctx, change.PlayerID)
			if err != nil {
				return fmt.Errorf("check player ownership: %w", err)
			}
			if owned && ownerTeamID != input.TeamID {
				return fmt.Errorf("%w: ledger restores player=%s now owned by team=%s", roster.ErrPlayerAlreadyOwned, change.PlayerID, ownerTeamID)
			}
		}

		replayed.UpdatedAt = now
		if err := tx.Save(ctx, replayed); err != nil {
			return err
		}

		entryID, err := s.idGen.NewID()
		if err != nil {
			return fmt.Errorf("generate ledger entry id: %w", err)
		}
		reason := input.Reason
		if reason == "" {
			reason = fmt.Sprintf("reconciled %d roster differences from ledger", len(result.Changes))
		}
		marker = ledger.Entry{
			ID:          entryID,
			LeagueID:    input.LeagueID,
			TeamID:      input.TeamID,
			Action:      ledger.ActionReconcile,
			ActorUserID: input.ActorUserID,
			Reason:      reason,
			Source:      ledger.SourceAdmin,
			CreatedAt:   now,
		}
		if err := tx.AppendLedger(ctx, marker); err != nil {
			return err
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		return ReconcileRosterResult{}, err
	}

	if result.Applied {
		s.logger.WarnContext(ctx, "roster reconciled from ledger",
			"league_id", input.LeagueID,
			"team_id", input.TeamID,
			"changes", len(result.Changes),
			"actor_user_id", input.ActorUserID,
		)
		s.publish(ctx, marker)
	}
	return result, nil
}

func (s *RosterEngine) resolveLeagueTeam(ctx context.Context, leagueID, teamID string, checkOwner bool) (league.League, team.Team, error) {
	lg, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return league.League{}, team.Team{}, fmt.Errorf("get league: %w", err)
	}
	if !exists {
		return league.League{}, team.Team{}, fmt.Errorf("%w: %w: league=%s", ErrNotFound, roster.ErrLeagueNotFound, leagueID)
	}

	tm, exists, err := getTeam(ctx, s.teamRepo, leagueID, teamID, checkOwner)
	if err != nil {
		return league.League{}, team.Team{}, fmt.Errorf("get team: %w", err)
	}
	if !exists {
		return league.League{}, team.Team{}, fmt.Errorf("%w: %w: team=%s", ErrNotFound, roster.ErrTeamNotFound, teamID)
	}
	return lg, tm, nil
}

func (s *RosterEngine) ensureNotOnWaivers(ctx context.Context, leagueID, playerID string, now time.Time) error {
	if s.wireRepo == nil {
		return nil
	}
	entry, exists, err := s.wireRepo.GetWireEntry(ctx, leagueID, playerID)
	if err != nil {
		return fmt.Errorf("check waiver wire: %w", err)
	}
	if exists && entry.Active(now) {
		return fmt.Errorf("%w: player=%s clears_at=%s", waiver.ErrPlayerOnWaivers, playerID, entry.ClearsAt.Format(time.RFC3339))
	}
	return nil
}

func (s *RosterEngine) publish(ctx context.Context, entry ledger.Entry) {
	if s.publisher == nil {
		return
	}
	eventID, err := s.idGen.NewID()
	if err != nil {
		s.logger.WarnContext(ctx, "generate roster event id failed", "error", err)
		return
	}

	event := rosterevent.RosterChanged{
		EventID:         eventID,
		LeagueID:        entry.LeagueID,
		TeamID:          entry.TeamID,
		Action:          entry.Action,
		Source:          entry.Source,
		AddedPlayerID:   entry.AddedPlayerID,
		DroppedPlayerID: entry.DroppedPlayerID,
		ActorUserID:     entry.ActorUserID,
		LedgerEntryID:   entry.ID,
		OccurredAt:      entry.CreatedAt,
	}
	// The move is already committed; a lost event is repaired by the
	// snapshot integrity sweep.
	if err := s.publisher.PublishRosterChanged(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "publish roster changed event failed",
			"league_id", entry.LeagueID,
			"team_id", entry.TeamID,
			"ledger_entry_id", entry.ID,
			"error", err,
		)
	}
}

func parsePlacement(status roster.Status, slot roster.Slot) (roster.Assignment, error) {
	parsedSlot, err := roster.ParseSlot(string(slot))
	if err != nil {
		return roster.Assignment{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	status = roster.Status(strings.ToLower(strings.TrimSpace(string(status))))
	if status != "" && !status.Valid() {
		return roster.Assignment{}, fmt.Errorf("%w: %w: unknown status %q", ErrInvalidInput, roster.ErrInvalidSlot, status)
	}
	placement, err := roster.Assignment{Status: status, Slot: parsedSlot}.Normalize()
	if err != nil {
		return roster.Assignment{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return placement, nil
}

// getTeam skips any read cache when the caller's ownership is about to be
// checked.
func getTeam(ctx context.Context, repo team.Repository, leagueID, teamID string, checkOwner bool) (team.Team, bool, error) {
	if fresh, ok := repo.(team.FreshReader); ok && checkOwner {
		return fresh.GetByIDFresh(ctx, leagueID, teamID)
	}
	return repo.GetByID(ctx, leagueID, teamID)
}

// resolveActor picks who the ledger credits. Owner-less teams only accept
// admin moves with an explicit actor.
func resolveActor(tm team.Team, source ledger.Source, actor string, enforceOwner bool) (string, error) {
	owner, hasOwner := tm.Owner()
	if enforceOwner {
		if !hasOwner {
			return "", fmt.Errorf("%w: team=%s", roster.ErrTeamHasNoOwner, tm.ID)
		}
		if actor != owner {
			return "", fmt.Errorf("%w: user does not own team=%s", ErrForbidden, tm.ID)
		}
		return actor, nil
	}

	if source == ledger.SourceAdmin && actor != "" {
		return actor, nil
	}
	if !hasOwner {
		return "", fmt.Errorf("%w: team=%s", roster.ErrTeamHasNoOwner, tm.ID)
	}
	if actor == "" {
		actor = owner
	}
	return actor, nil
}

func moveOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, roster.ErrPlayerAlreadyOwned):
		return "already_owned"
	case errors.Is(err, roster.ErrRosterFull):
		return "roster_full"
	case errors.Is(err, waiver.ErrPlayerOnWaivers):
		return "on_waivers"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return metrics.OutcomeError
	}
}

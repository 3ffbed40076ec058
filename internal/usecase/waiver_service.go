package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	"github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/lock"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
)

type WaiverConfig struct {
	BatchSize  int
	MaxBatches int
}

type SubmitWaiverClaimInput struct {
	LeagueID     string
	TeamID       string
	AddPlayerID  string
	DropPlayerID string
	ActorUserID  string
	EnforceOwner bool
}

type WaiverBatchResult struct {
	LeagueID       string            `json:"league_id"`
	Skipped        bool              `json:"skipped"`
	ProcessedCount int               `json:"processed_count"`
	Outcomes       []waiver.Outcome  `json:"outcomes"`
	Priorities     []waiver.Priority `json:"priorities"`
}

type rosterMover interface {
	ApplyRosterMove(ctx context.Context, input ApplyRosterMoveInput) (RosterMoveResult, error)
}

// WaiverService owns the claim queue and is the only writer of waiver
// priorities.
type WaiverService struct {
	leagueRepo league.Repository
	teamRepo   team.Repository
	waiverRepo waiver.Repository
	mover      rosterMover
	ledgerRepo ledger.Reader
	locker     lock.Locker
	idGen      id.Generator
	cfg        WaiverConfig
	logger     *logging.Logger
	now        func() time.Time
}

func NewWaiverService(
	leagueRepo league.Repository,
	teamRepo team.Repository,
	waiverRepo waiver.Repository,
	mover rosterMover,
	ledgerRepo ledger.Reader,
	locker lock.Locker,
	idGen id.Generator,
	cfg WaiverConfig,
	logger *logging.Logger,
) *WaiverService {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewUUIDGenerator()
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 10
	}

	return &WaiverService{
		leagueRepo: leagueRepo,
		teamRepo:   teamRepo,
		waiverRepo: waiverRepo,
		mover:      mover,
		ledgerRepo: ledgerRepo,
		locker:     locker,
		idGen:      idGen,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *WaiverService) SubmitWaiverClaim(ctx context.Context, input SubmitWaiverClaimInput) (waiver.Claim, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WaiverService.SubmitWaiverClaim")
	defer span.End()

	input.LeagueID = strings.TrimSpace(input.LeagueID)
	input.TeamID = strings.TrimSpace(input.TeamID)
	input.AddPlayerID = strings.TrimSpace(input.AddPlayerID)
	input.DropPlayerID = strings.TrimSpace(input.DropPlayerID)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)

	if input.LeagueID == "" || input.TeamID == "" {
		return waiver.Claim{}, fmt.Errorf("%w: league_id and team_id are required", ErrInvalidInput)
	}
	if input.AddPlayerID == "" {
		return waiver.Claim{}, fmt.Errorf("%w: add_player_id is required", ErrInvalidInput)
	}
	if input.AddPlayerID == input.DropPlayerID {
		return waiver.Claim{}, fmt.Errorf("%w: cannot add and drop the same player", ErrInvalidInput)
	}

	if _, err := s.getLeague(ctx, input.LeagueID); err != nil {
		return waiver.Claim{}, err
	}
	tm, exists, err := getTeam(ctx, s.teamRepo, input.LeagueID, input.TeamID, input.EnforceOwner)
	if err != nil {
		return waiver.Claim{}, fmt.Errorf("get team: %w", err)
	}
	if !exists {
		return waiver.Claim{}, fmt.Errorf("%w: %w: team=%s", ErrNotFound, roster.ErrTeamNotFound, input.TeamID)
	}
	if input.EnforceOwner {
		if _, err := resolveActor(tm, ledger.SourceManual, input.ActorUserID, true); err != nil {
			return waiver.Claim{}, err
		}
	}

	claimID, err := s.idGen.NewID()
	if err != nil {
		return waiver.Claim{}, fmt.Errorf("generate claim id: %w", err)
	}
	claim := waiver.Claim{
		ID:           claimID,
		LeagueID:     input.LeagueID,
		TeamID:       input.TeamID,
		AddPlayerID:  input.AddPlayerID,
		DropPlayerID: input.DropPlayerID,
		Status:       waiver.StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.waiverRepo.CreateClaim(ctx, claim); err != nil {
		if errors.Is(err, waiver.ErrDuplicateClaim) {
			return waiver.Claim{}, err
		}
		return waiver.Claim{}, fmt.Errorf("create waiver claim: %w", err)
	}

	s.logger.InfoContext(ctx, "waiver claim submitted",
		"league_id", claim.LeagueID,
		"team_id", claim.TeamID,
		"claim_id", claim.ID,
		"add_player_id", claim.AddPlayerID,
	)
	return claim, nil
}

// ProcessWaiverBatch drains one league's pending claims. When another run
// holds the league it returns immediately with Skipped set and no error.
func (s *WaiverService) ProcessWaiverBatch(ctx context.Context, leagueID string) (result WaiverBatchResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WaiverService.ProcessWaiverBatch", attribute.String("league_id", leagueID))
	defer func() {
		switch {
		case err != nil:
			metrics.WaiverRunsTotal.WithLabelValues("failed").Inc()
		case result.Skipped:
			metrics.WaiverRunsTotal.WithLabelValues("skipped").Inc()
		default:
			metrics.WaiverRunsTotal.WithLabelValues("processed").Inc()
		}
		endSpan(span, err)
	}()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return WaiverBatchResult{}, fmt.Errorf("%w: league_id is required", ErrInvalidInput)
	}
	result = WaiverBatchResult{LeagueID: leagueID, Outcomes: make([]waiver.Outcome, 0)}

	lease, err := s.locker.TryLock(ctx, lock.Key("waivers", leagueID))
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.InfoContext(ctx, "waiver batch already running, skipping", "league_id", leagueID)
		result.Skipped = true
		return result, nil
	}
	if err != nil {
		return WaiverBatchResult{}, fmt.Errorf("%w: acquire waiver lock: %w", ErrDependencyUnavailable, err)
	}
	startedAt := time.Now()
	defer func() {
		metrics.WaiverRunDuration.Observe(time.Since(startedAt).Seconds())
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logger.ErrorContext(ctx, "release waiver lock failed", "league_id", leagueID, "error", releaseErr)
		}
	}()

	lg, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return WaiverBatchResult{}, err
	}
	teams, err := s.teamRepo.ListByLeague(ctx, leagueID)
	if err != nil {
		return WaiverBatchResult{}, fmt.Errorf("list teams: %w", err)
	}
	teamsByID := make(map[string]team.Team, len(teams))
	for _, t := range teams {
		teamsByID[t.ID] = t
	}

	priorities, err := s.ensurePriorities(ctx, lg, teams)
	if err != nil {
		return WaiverBatchResult{}, err
	}

	// A rotation changes the order of everything still pending, so the
	// queue is read again after each one. Only fetches that ran to the end
	// count against MaxBatches.
	maxClaims := s.cfg.MaxBatches * s.cfg.BatchSize
	for fetches := 0; fetches < s.cfg.MaxBatches && result.ProcessedCount < maxClaims; {
		claims, err := s.waiverRepo.ListPendingClaims(ctx, leagueID, lg.WaiverPolicy, s.cfg.BatchSize)
		if err != nil {
			return result, fmt.Errorf("list pending claims: %w", err)
		}
		if len(claims) == 0 {
			break
		}

		rotated := false
		for _, claim := range claims {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			outcome, next, err := s.processClaim(ctx, claim, lg, teamsByID, priorities)
			if err != nil {
				return result, err
			}
			result.ProcessedCount++
			result.Outcomes = append(result.Outcomes, outcome)
			if next != nil {
				priorities = next
				rotated = true
				break
			}
		}
		if rotated {
			continue
		}

		fetches++
		if len(claims) < s.cfg.BatchSize {
			break
		}
	}

	result.Priorities = priorities
	s.logger.InfoContext(ctx, "waiver batch processed",
		"league_id", leagueID,
		"processed", result.ProcessedCount,
	)
	return result, nil
}

// ClearExpiredWaivers releases players whose waiver window has passed.
func (s *WaiverService) ClearExpiredWaivers(ctx context.Context, leagueID string) (int, error) {
	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return 0, fmt.Errorf("%w: league_id is required", ErrInvalidInput)
	}
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return 0, err
	}

	cleared, err := s.waiverRepo.ClearExpiredWire(ctx, leagueID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clear expired waivers: %w", err)
	}
	if cleared > 0 {
		s.logger.InfoContext(ctx, "expired waivers cleared", "league_id", leagueID, "cleared", cleared)
	}
	return cleared, nil
}

// PlaceOnWaivers puts a dropped player on the wire for the league's waiver
// period. A zero period means dropped players are free agents immediately.
func (s *WaiverService) PlaceOnWaivers(ctx context.Context, leagueID, playerID, droppedByTeamID string) error {
	lg, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if lg.WaiverPeriod <= 0 {
		return nil
	}
	entry := waiver.WireEntry{
		LeagueID:        leagueID,
		PlayerID:        playerID,
		DroppedByTeamID: droppedByTeamID,
		ClearsAt:        s.now().UTC().Add(lg.WaiverPeriod),
	}
	if err := s.waiverRepo.PlaceOnWire(ctx, entry); err != nil {
		return fmt.Errorf("place player on waivers: %w", err)
	}
	return nil
}

func (s *WaiverService) ListClaims(ctx context.Context, filter waiver.ClaimFilter) ([]waiver.Claim, error) {
	filter.LeagueID = strings.TrimSpace(filter.LeagueID)
	filter.TeamID = strings.TrimSpace(filter.TeamID)
	if filter.LeagueID == "" {
		return nil, fmt.Errorf("%w: league_id is required", ErrInvalidInput)
	}
	if filter.Status != "" && filter.Status != waiver.StatusPending && !filter.Status.Terminal() {
		return nil, fmt.Errorf("%w: unknown claim status %q", ErrInvalidInput, filter.Status)
	}
	if _, err := s.getLeague(ctx, filter.LeagueID); err != nil {
		return nil, err
	}

	items, err := s.waiverRepo.ListClaims(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list waiver claims: %w", err)
	}
	return items, nil
}

// ListPriorities returns the effective order including teams that have not
// been assigned a rank yet. It does not persist anything.
func (s *WaiverService) ListPriorities(ctx context.Context, leagueID string) ([]waiver.Priority, error) {
	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return nil, fmt.Errorf("%w: league_id is required", ErrInvalidInput)
	}
	lg, err := s.getLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	teams, err := s.teamRepo.ListByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	existing, err := s.waiverRepo.ListPriorities(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list waiver priorities: %w", err)
	}
	return waiver.Normalize(leagueID, existing, teams, lg.WaiverPolicy), nil
}

// processClaim runs one claim through the roster engine and stores its
// outcome. For a rolling league win it also returns the rotated priorities,
// which are persisted together with the claim.
func (s *WaiverService) processClaim(ctx context.Context, claim waiver.Claim, lg league.League, teamsByID map[string]team.Team, priorities []waiver.Priority) (waiver.Outcome, []waiver.Priority, error) {
	applied, err := s.alreadyApplied(ctx, claim)
	if err != nil {
		return waiver.Outcome{}, nil, err
	}
	var engineErr error
	if !applied {
		engineErr = s.applyClaim(ctx, claim, teamsByID)
		if errors.Is(engineErr, context.Canceled) || errors.Is(engineErr, context.DeadlineExceeded) {
			return waiver.Outcome{}, nil, engineErr
		}
	}

	resolved, err := claim.Resolve(engineErr, s.now().UTC())
	if err != nil {
		return waiver.Outcome{}, nil, err
	}
	var rotated []waiver.Priority
	if resolved.Status == waiver.StatusSuccessful && lg.WaiverPolicy == league.WaiverPolicyRolling {
		rotated = waiver.RotateToBack(priorities, claim.TeamID)
	}
	if err := s.waiverRepo.ResolveClaim(ctx, resolved, rotated); err != nil {
		return waiver.Outcome{}, nil, fmt.Errorf("resolve claim %s: %w", claim.ID, err)
	}
	metrics.WaiverClaimsProcessedTotal.WithLabelValues(string(resolved.Status)).Inc()

	if resolved.Status == waiver.StatusSuccessful {
		if err := s.waiverRepo.ClearWire(ctx, claim.LeagueID, claim.AddPlayerID); err != nil {
			s.logger.WarnContext(ctx, "clear waiver wire after claim failed",
				"league_id", claim.LeagueID,
				"player_id", claim.AddPlayerID,
				"error", err,
			)
		}
	} else {
		s.logger.InfoContext(ctx, "waiver claim failed",
			"league_id", claim.LeagueID,
			"claim_id", claim.ID,
			"team_id", claim.TeamID,
			"reason", resolved.FailureReason,
		)
	}

	return waiver.Outcome{
		ClaimID:       resolved.ID,
		TeamID:        resolved.TeamID,
		AddPlayerID:   resolved.AddPlayerID,
		DropPlayerID:  resolved.DropPlayerID,
		Status:        resolved.Status,
		FailureReason: resolved.FailureReason,
	}, rotated, nil
}

// alreadyApplied reports whether the claim's move is in the ledger. That
// happens when an earlier run moved the player and stopped before the claim
// was resolved; the claim then resolves as successful without moving again.
func (s *WaiverService) alreadyApplied(ctx context.Context, claim waiver.Claim) (bool, error) {
	if s.ledgerRepo == nil {
		return false, nil
	}
	entry, found, err := s.ledgerRepo.FindByReason(ctx, claim.LeagueID, claim.TeamID, claim.LedgerReason())
	if err != nil {
		return false, fmt.Errorf("find ledger entry of claim %s: %w", claim.ID, err)
	}
	if found {
		s.logger.InfoContext(ctx, "waiver claim already applied, resolving",
			"league_id", claim.LeagueID,
			"claim_id", claim.ID,
			"ledger_seq", entry.Seq,
		)
	}
	return found, nil
}

func (s *WaiverService) applyClaim(ctx context.Context, claim waiver.Claim, teamsByID map[string]team.Team) error {
	tm, exists := teamsByID[claim.TeamID]
	owner, hasOwner := tm.Owner()
	switch {
	case !exists:
		return fmt.Errorf("%w: team=%s", roster.ErrTeamNotFound, claim.TeamID)
	case !hasOwner:
		return fmt.Errorf("%w: team=%s", roster.ErrTeamHasNoOwner, claim.TeamID)
	}
	_, err := s.mover.ApplyRosterMove(ctx, ApplyRosterMoveInput{
		LeagueID:     claim.LeagueID,
		TeamID:       claim.TeamID,
		AddPlayerID:  claim.AddPlayerID,
		DropPlayerID: claim.DropPlayerID,
		Reason:       claim.LedgerReason(),
		Source:       ledger.SourceWaiver,
		ActorUserID:  owner,
	})
	return err
}

func (s *WaiverService) ensurePriorities(ctx context.Context, lg league.League, teams []team.Team) ([]waiver.Priority, error) {
	existing, err := s.waiverRepo.ListPriorities(ctx, lg.ID)
	if err != nil {
		return nil, fmt.Errorf("list waiver priorities: %w", err)
	}
	normalized := waiver.Normalize(lg.ID, existing, teams, lg.WaiverPolicy)
	if slices.Equal(existing, normalized) {
		return normalized, nil
	}
	if err := s.waiverRepo.ReplacePriorities(ctx, lg.ID, normalized); err != nil {
		return nil, fmt.Errorf("initialise waiver priorities: %w", err)
	}
	return normalized, nil
}

func (s *WaiverService) getLeague(ctx context.Context, leagueID string) (league.League, error) {
	lg, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return league.League{}, fmt.Errorf("get league: %w", err)
	}
	if !exists {
		return league.League{}, fmt.Errorf("%w: %w: league=%s", ErrNotFound, roster.ErrLeagueNotFound, leagueID)
	}
	return lg, nil
}

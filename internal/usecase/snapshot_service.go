package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/fantasy-roster/internal/domain/league"
	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/team"
	"github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
)

type SnapshotConfig struct {
	RepairWorkers int
}

type SnapshotSyncResult struct {
	DaysWritten  int `json:"days_written"`
	DaysSkipped  int `json:"days_skipped"`
	RowsUpserted int `json:"rows_upserted"`
	RowsDeleted  int `json:"rows_deleted"`
}

type LockDayResult struct {
	LeagueID         string    `json:"league_id"`
	Day              time.Time `json:"day"`
	RowsMaterialized int       `json:"rows_materialized"`
	RowsLocked       int       `json:"rows_locked"`
}

type RepairSnapshotsResult struct {
	LeagueID     string `json:"league_id"`
	TeamsScanned int    `json:"teams_scanned"`
	DaysRepaired int    `json:"days_repaired"`
	TeamsFailed  int    `json:"teams_failed"`
}

type CorrectLockedDayInput struct {
	LeagueID    string
	TeamID      string
	MatchupID   string
	PlayerID    string
	Day         time.Time
	Status      roster.Status
	Slot        roster.Slot
	Remove      bool
	ActorUserID string
	Reason      string
}

type DailySnapshot struct {
	LeagueID  string         `json:"league_id"`
	TeamID    string         `json:"team_id"`
	MatchupID string         `json:"matchup_id"`
	Day       time.Time      `json:"day"`
	Locked    bool           `json:"locked"`
	Rows      []snapshot.Row `json:"rows"`
}

type rosterReader interface {
	GetEntry(ctx context.Context, leagueID, teamID string) (roster.Entry, error)
}

// SnapshotService keeps per-day frozen rosters in step with the live roster.
// Every write decision goes through snapshot.IsMutable.
type SnapshotService struct {
	leagueRepo   league.Repository
	teamRepo     team.Repository
	rosters      rosterReader
	snapshotRepo snapshot.Repository
	ledgerRepo   ledger.Appender
	idGen        id.Generator
	cfg          SnapshotConfig
	logger       *logging.Logger
	now          func() time.Time
}

func NewSnapshotService(
	leagueRepo league.Repository,
	teamRepo team.Repository,
	rosters rosterReader,
	snapshotRepo snapshot.Repository,
	ledgerRepo ledger.Appender,
	idGen id.Generator,
	cfg SnapshotConfig,
	logger *logging.Logger,
) *SnapshotService {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewUUIDGenerator()
	}
	if cfg.RepairWorkers <= 0 {
		cfg.RepairWorkers = 4
	}

	return &SnapshotService{
		leagueRepo:   leagueRepo,
		teamRepo:     teamRepo,
		rosters:      rosters,
		snapshotRepo: snapshotRepo,
		ledgerRepo:   ledgerRepo,
		idGen:        idGen,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// SyncDailySnapshotsForTeam rewrites every mutable day of the team's current
// and future matchups from the live roster. Running it twice writes nothing
// the second time.
func (s *SnapshotService) SyncDailySnapshotsForTeam(ctx context.Context, leagueID, teamID string) (result SnapshotSyncResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.SyncDailySnapshotsForTeam")
	defer func() { endSpan(span, err) }()

	leagueID = strings.TrimSpace(leagueID)
	teamID = strings.TrimSpace(teamID)
	if leagueID == "" || teamID == "" {
		return SnapshotSyncResult{}, fmt.Errorf("%w: league_id and team_id are required", ErrInvalidInput)
	}
	if err := s.ensureTeam(ctx, leagueID, teamID); err != nil {
		return SnapshotSyncResult{}, err
	}

	entry, err := s.rosters.GetEntry(ctx, leagueID, teamID)
	if err != nil {
		return SnapshotSyncResult{}, fmt.Errorf("get roster entry: %w", err)
	}
	matchups, err := s.snapshotRepo.ListMatchups(ctx, leagueID)
	if err != nil {
		return SnapshotSyncResult{}, fmt.Errorf("list matchups: %w", err)
	}

	now := s.now().UTC()
	today := snapshot.Day(now)
	locked, err := s.lockedDays(ctx, leagueID, matchups, today, now)
	if err != nil {
		return SnapshotSyncResult{}, err
	}

	for _, m := range matchups {
		if snapshot.Day(m.EndDay).Before(today) {
			continue
		}
		for _, day := range m.Days() {
			if !snapshot.IsMutable(day, today, locked[day]) {
				result.DaysSkipped++
				continue
			}

			rows := snapshot.RowsFromEntry(entry, m.ID, day, now)
			written, err := s.snapshotRepo.ReplaceDay(ctx, teamID, m.ID, day, rows)
			if errors.Is(err, snapshot.ErrDayLocked) {
				s.reportPolicyViolation(ctx, leagueID, teamID, m.ID, day, "sync")
				result.DaysSkipped++
				continue
			}
			if err != nil {
				return result, fmt.Errorf("replace snapshot day %s: %w", day.Format(time.DateOnly), err)
			}

			result.DaysWritten++
			result.RowsUpserted += written.Upserted
			result.RowsDeleted += written.Deleted
		}
	}

	metrics.SnapshotRowsWrittenTotal.WithLabelValues("upsert").Add(float64(result.RowsUpserted))
	metrics.SnapshotRowsWrittenTotal.WithLabelValues("delete").Add(float64(result.RowsDeleted))
	return result, nil
}

// LockDay freezes a league day. Teams with no rows for the day get them
// materialized from the live roster first so nobody is left without a record.
func (s *SnapshotService) LockDay(ctx context.Context, leagueID string, day time.Time) (result LockDayResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.LockDay")
	defer func() { endSpan(span, err) }()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" || day.IsZero() {
		return LockDayResult{}, fmt.Errorf("%w: league_id and day are required", ErrInvalidInput)
	}
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return LockDayResult{}, err
	}

	day = snapshot.Day(day)
	now := s.now().UTC()
	result = LockDayResult{LeagueID: leagueID, Day: day}

	matchup, found, err := s.matchupForDay(ctx, leagueID, day)
	if err != nil {
		return LockDayResult{}, err
	}
	if found {
		teams, err := s.teamRepo.ListByLeague(ctx, leagueID)
		if err != nil {
			return LockDayResult{}, fmt.Errorf("list teams: %w", err)
		}
		for _, t := range teams {
			existing, err := s.snapshotRepo.ListDay(ctx, t.ID, matchup.ID, day)
			if err != nil {
				return LockDayResult{}, fmt.Errorf("list snapshot day: %w", err)
			}
			if len(existing) > 0 {
				continue
			}
			entry, err := s.rosters.GetEntry(ctx, leagueID, t.ID)
			if err != nil {
				return LockDayResult{}, fmt.Errorf("get roster entry: %w", err)
			}
			written, err := s.snapshotRepo.ReplaceDay(ctx, t.ID, matchup.ID, day, snapshot.RowsFromEntry(entry, matchup.ID, day, now))
			if err != nil {
				return LockDayResult{}, fmt.Errorf("materialize snapshot day: %w", err)
			}
			result.RowsMaterialized += written.Upserted
		}
	}

	locked, err := s.snapshotRepo.LockDay(ctx, leagueID, day)
	if err != nil {
		return LockDayResult{}, fmt.Errorf("lock snapshot day: %w", err)
	}
	result.RowsLocked = locked

	dayLock, _, err := s.snapshotRepo.GetDayLock(ctx, leagueID, day)
	if err != nil {
		return LockDayResult{}, fmt.Errorf("get day lock: %w", err)
	}
	dayLock.LeagueID = leagueID
	dayLock.Day = day
	if dayLock.LockedAt == nil {
		dayLock.LockedAt = &now
	}
	if err := s.snapshotRepo.UpsertDayLock(ctx, dayLock); err != nil {
		return LockDayResult{}, fmt.Errorf("record day lock: %w", err)
	}

	s.logger.InfoContext(ctx, "snapshot day locked",
		"league_id", leagueID,
		"day", day.Format(time.DateOnly),
		"rows_locked", locked,
		"rows_materialized", result.RowsMaterialized,
	)
	return result, nil
}

// ScheduleDayLock records the first game start of a day so the day counts as
// locked from that moment even before LockDay runs.
func (s *SnapshotService) ScheduleDayLock(ctx context.Context, leagueID string, locksAt time.Time) error {
	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" || locksAt.IsZero() {
		return fmt.Errorf("%w: league_id and locks_at are required", ErrInvalidInput)
	}
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return err
	}

	day := snapshot.Day(locksAt)
	current, exists, err := s.snapshotRepo.GetDayLock(ctx, leagueID, day)
	if err != nil {
		return fmt.Errorf("get day lock: %w", err)
	}
	if exists && current.LockedAt != nil {
		return fmt.Errorf("%w: league=%s day=%s", snapshot.ErrDayLocked, leagueID, day.Format(time.DateOnly))
	}
	return s.snapshotRepo.UpsertDayLock(ctx, snapshot.DayLock{LeagueID: leagueID, Day: day, LocksAt: locksAt.UTC()})
}

// RepairMissingDays fills gaps in the current and future mutable days of
// every team, using only the live roster.
func (s *SnapshotService) RepairMissingDays(ctx context.Context, leagueID string) (RepairSnapshotsResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.RepairMissingDays")
	defer span.End()

	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return RepairSnapshotsResult{}, fmt.Errorf("%w: league_id is required", ErrInvalidInput)
	}
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return RepairSnapshotsResult{}, err
	}
	teams, err := s.teamRepo.ListByLeague(ctx, leagueID)
	if err != nil {
		return RepairSnapshotsResult{}, fmt.Errorf("list teams: %w", err)
	}
	matchups, err := s.snapshotRepo.ListMatchups(ctx, leagueID)
	if err != nil {
		return RepairSnapshotsResult{}, fmt.Errorf("list matchups: %w", err)
	}

	now := s.now().UTC()
	today := snapshot.Day(now)
	locked, err := s.lockedDays(ctx, leagueID, matchups, today, now)
	if err != nil {
		return RepairSnapshotsResult{}, err
	}

	var repaired atomic.Int32
	var failed atomic.Int32
	p := pool.New().WithMaxGoroutines(s.cfg.RepairWorkers).WithContext(ctx)
	for _, t := range teams {
		teamID := t.ID
		p.Go(func(ctx context.Context) error {
			count, err := s.repairTeam(ctx, leagueID, teamID, matchups, today, locked, now)
			repaired.Add(int32(count))
			if err != nil {
				failed.Add(1)
				s.logger.ErrorContext(ctx, "snapshot repair failed for team",
					"league_id", leagueID,
					"team_id", teamID,
					"error", err,
				)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return RepairSnapshotsResult{}, err
	}

	result := RepairSnapshotsResult{
		LeagueID:     leagueID,
		TeamsScanned: len(teams),
		DaysRepaired: int(repaired.Load()),
		TeamsFailed:  int(failed.Load()),
	}
	if result.DaysRepaired > 0 {
		metrics.SnapshotDaysRepairedTotal.Add(float64(result.DaysRepaired))
		s.logger.WarnContext(ctx, "snapshot gaps repaired",
			"league_id", leagueID,
			"days_repaired", result.DaysRepaired,
		)
	}
	return result, nil
}

// CorrectLockedDay is the audited path for changing a frozen day.
func (s *SnapshotService) CorrectLockedDay(ctx context.Context, input CorrectLockedDayInput) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.CorrectLockedDay")
	defer span.End()

	input.LeagueID = strings.TrimSpace(input.LeagueID)
	input.TeamID = strings.TrimSpace(input.TeamID)
	input.MatchupID = strings.TrimSpace(input.MatchupID)
	input.PlayerID = strings.TrimSpace(input.PlayerID)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)
	input.Reason = strings.TrimSpace(input.Reason)
	if input.LeagueID == "" || input.TeamID == "" || input.MatchupID == "" || input.PlayerID == "" || input.Day.IsZero() {
		return fmt.Errorf("%w: league_id, team_id, matchup_id, player_id and day are required", ErrInvalidInput)
	}
	if input.ActorUserID == "" || input.Reason == "" {
		return fmt.Errorf("%w: corrections need an actor and a reason", ErrInvalidInput)
	}
	placement := roster.Assignment{}
	if !input.Remove {
		var err error
		placement, err = parsePlacement(input.Status, input.Slot)
		if err != nil {
			return err
		}
	}
	if err := s.ensureTeam(ctx, input.LeagueID, input.TeamID); err != nil {
		return err
	}

	day := snapshot.Day(input.Day)
	matchup, exists, err := s.snapshotRepo.GetMatchup(ctx, input.LeagueID, input.MatchupID)
	if err != nil {
		return fmt.Errorf("get matchup: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %w: matchup=%s", ErrNotFound, snapshot.ErrMatchupNotFound, input.MatchupID)
	}
	if !matchup.Contains(day) {
		return fmt.Errorf("%w: %w: %s", ErrInvalidInput, snapshot.ErrDayOutsideWindow, day.Format(time.DateOnly))
	}

	now := s.now().UTC()
	locked, err := s.isDayLocked(ctx, input.LeagueID, day, now)
	if err != nil {
		return err
	}
	if snapshot.IsMutable(day, now, locked) {
		return fmt.Errorf("%w: day %s is not locked, change the live roster instead", ErrInvalidInput, day.Format(time.DateOnly))
	}

	err = s.snapshotRepo.ApplyCorrection(ctx, snapshot.Correction{
		LeagueID:    input.LeagueID,
		TeamID:      input.TeamID,
		MatchupID:   input.MatchupID,
		PlayerID:    input.PlayerID,
		Day:         day,
		Status:      placement.Status,
		Slot:        placement.Slot,
		Remove:      input.Remove,
		ActorUserID: input.ActorUserID,
		Reason:      input.Reason,
	}, now)
	if errors.Is(err, snapshot.ErrRowNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("apply snapshot correction: %w", err)
	}

	entryID, err := s.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate ledger entry id: %w", err)
	}
	entry := ledger.Entry{
		ID:            entryID,
		LeagueID:      input.LeagueID,
		TeamID:        input.TeamID,
		Action:        ledger.ActionCorrection,
		AddedPlayerID: input.PlayerID,
		AddedStatus:   string(placement.Status),
		AddedSlot:     string(placement.Slot),
		ActorUserID:   input.ActorUserID,
		Reason:        input.Reason,
		Source:        ledger.SourceAdmin,
		MatchupID:     input.MatchupID,
		Day:           &day,
		CreatedAt:     now,
	}
	if input.Remove {
		entry.AddedPlayerID, entry.AddedStatus, entry.AddedSlot = "", "", ""
		entry.DroppedPlayerID = input.PlayerID
	}
	if err := s.ledgerRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append correction ledger entry: %w", err)
	}

	s.logger.WarnContext(ctx, "locked snapshot day corrected",
		"league_id", input.LeagueID,
		"team_id", input.TeamID,
		"matchup_id", input.MatchupID,
		"player_id", input.PlayerID,
		"day", day.Format(time.DateOnly),
		"actor_user_id", input.ActorUserID,
		"reason", input.Reason,
	)
	return nil
}

func (s *SnapshotService) GetDailySnapshot(ctx context.Context, leagueID, teamID, matchupID string, day time.Time) (DailySnapshot, error) {
	leagueID = strings.TrimSpace(leagueID)
	teamID = strings.TrimSpace(teamID)
	matchupID = strings.TrimSpace(matchupID)
	if leagueID == "" || teamID == "" || matchupID == "" || day.IsZero() {
		return DailySnapshot{}, fmt.Errorf("%w: league_id, team_id, matchup_id and day are required", ErrInvalidInput)
	}
	if err := s.ensureTeam(ctx, leagueID, teamID); err != nil {
		return DailySnapshot{}, err
	}
	if _, exists, err := s.snapshotRepo.GetMatchup(ctx, leagueID, matchupID); err != nil {
		return DailySnapshot{}, fmt.Errorf("get matchup: %w", err)
	} else if !exists {
		return DailySnapshot{}, fmt.Errorf("%w: %w: matchup=%s", ErrNotFound, snapshot.ErrMatchupNotFound, matchupID)
	}

	day = snapshot.Day(day)
	rows, err := s.snapshotRepo.ListDay(ctx, teamID, matchupID, day)
	if err != nil {
		return DailySnapshot{}, fmt.Errorf("list snapshot day: %w", err)
	}
	locked, err := s.isDayLocked(ctx, leagueID, day, s.now().UTC())
	if err != nil {
		return DailySnapshot{}, err
	}
	return DailySnapshot{
		LeagueID:  leagueID,
		TeamID:    teamID,
		MatchupID: matchupID,
		Day:       day,
		Locked:    locked,
		Rows:      rows,
	}, nil
}

func (s *SnapshotService) repairTeam(
	ctx context.Context,
	leagueID, teamID string,
	matchups []snapshot.Matchup,
	today time.Time,
	locked map[time.Time]bool,
	now time.Time,
) (int, error) {
	var entry *roster.Entry
	repaired := 0
	for _, m := range matchups {
		if snapshot.Day(m.EndDay).Before(today) {
			continue
		}
		have, err := s.snapshotRepo.ListDays(ctx, teamID, m.ID)
		if err != nil {
			return repaired, fmt.Errorf("list snapshot days: %w", err)
		}
		present := make(map[time.Time]struct{}, len(have))
		for _, d := range have {
			present[snapshot.Day(d)] = struct{}{}
		}

		for _, day := range m.Days() {
			if _, ok := present[day]; ok {
				continue
			}
			if !snapshot.IsMutable(day, today, locked[day]) {
				continue
			}
			if entry == nil {
				loaded, err := s.rosters.GetEntry(ctx, leagueID, teamID)
				if err != nil {
					return repaired, fmt.Errorf("get roster entry: %w", err)
				}
				entry = &loaded
			}
			if len(entry.Players) == 0 {
				return repaired, nil
			}
			if _, err := s.snapshotRepo.ReplaceDay(ctx, teamID, m.ID, day, snapshot.RowsFromEntry(*entry, m.ID, day, now)); err != nil {
				if errors.Is(err, snapshot.ErrDayLocked) {
					s.reportPolicyViolation(ctx, leagueID, teamID, m.ID, day, "repair")
					continue
				}
				return repaired, fmt.Errorf("repair snapshot day %s: %w", day.Format(time.DateOnly), err)
			}
			repaired++
			s.logger.InfoContext(ctx, "snapshot gap repaired",
				"league_id", leagueID,
				"team_id", teamID,
				"matchup_id", m.ID,
				"day", day.Format(time.DateOnly),
			)
		}
	}
	return repaired, nil
}

// lockedDays reads the lock state of every day from today onward in matchups.
func (s *SnapshotService) lockedDays(ctx context.Context, leagueID string, matchups []snapshot.Matchup, today, now time.Time) (map[time.Time]bool, error) {
	out := make(map[time.Time]bool)
	for _, m := range matchups {
		for _, day := range m.Days() {
			if day.Before(today) {
				continue
			}
			if _, seen := out[day]; seen {
				continue
			}
			locked, err := s.isDayLocked(ctx, leagueID, day, now)
			if err != nil {
				return nil, err
			}
			out[day] = locked
		}
	}
	return out, nil
}

func (s *SnapshotService) isDayLocked(ctx context.Context, leagueID string, day, now time.Time) (bool, error) {
	dayLock, exists, err := s.snapshotRepo.GetDayLock(ctx, leagueID, day)
	if err != nil {
		return false, fmt.Errorf("get day lock: %w", err)
	}
	return exists && dayLock.IsLocked(now), nil
}

func (s *SnapshotService) matchupForDay(ctx context.Context, leagueID string, day time.Time) (snapshot.Matchup, bool, error) {
	matchups, err := s.snapshotRepo.ListMatchups(ctx, leagueID)
	if err != nil {
		return snapshot.Matchup{}, false, fmt.Errorf("list matchups: %w", err)
	}
	for _, m := range matchups {
		if m.Contains(day) {
			return m, true, nil
		}
	}
	return snapshot.Matchup{}, false, nil
}

func (s *SnapshotService) reportPolicyViolation(ctx context.Context, leagueID, teamID, matchupID string, day time.Time, operation string) {
	metrics.SnapshotPolicyViolationsTotal.Inc()
	s.logger.ErrorContext(ctx, "snapshot policy violation",
		"league_id", leagueID,
		"team_id", teamID,
		"matchup_id", matchupID,
		"day", day.Format(time.DateOnly),
		"operation", operation,
	)
}

func (s *SnapshotService) ensureTeam(ctx context.Context, leagueID, teamID string) error {
	if _, err := s.getLeague(ctx, leagueID); err != nil {
		return err
	}
	_, exists, err := s.teamRepo.GetByID(ctx, leagueID, teamID)
	if err != nil {
		return fmt.Errorf("get team: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %w: team=%s", ErrNotFound, roster.ErrTeamNotFound, teamID)
	}
	return nil
}

func (s *SnapshotService) getLeague(ctx context.Context, leagueID string) (league.League, error) {
	lg, exists, err := s.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		return league.League{}, fmt.Errorf("get league: %w", err)
	}
	if !exists {
		return league.League{}, fmt.Errorf("%w: %w: league=%s", ErrNotFound, roster.ErrLeagueNotFound, leagueID)
	}
	return lg, nil
}

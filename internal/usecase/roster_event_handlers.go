package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/rosterevent"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

type snapshotSyncer interface {
	SyncDailySnapshotsForTeam(ctx context.Context, leagueID, teamID string) (SnapshotSyncResult, error)
}

type waiverPlacer interface {
	PlaceOnWaivers(ctx context.Context, leagueID, playerID, droppedByTeamID string) error
}

// RosterEventHandlers consumes roster changed events after the move has
// committed. Each reaction runs independently; a failure in one never undoes
// the move and never blocks the others.
type RosterEventHandlers struct {
	snapshots snapshotSyncer
	waivers   waiverPlacer
	logger    *logging.Logger
}

func NewRosterEventHandlers(snapshots snapshotSyncer, waivers waiverPlacer, logger *logging.Logger) *RosterEventHandlers {
	if logger == nil {
		logger = logging.Default()
	}
	return &RosterEventHandlers{
		snapshots: snapshots,
		waivers:   waivers,
		logger:    logger,
	}
}

// HandleRosterChanged returns an error when any reaction failed so the bus
// can redeliver. All reactions are idempotent.
func (h *RosterEventHandlers) HandleRosterChanged(ctx context.Context, event rosterevent.RosterChanged) error {
	event.LeagueID = strings.TrimSpace(event.LeagueID)
	event.TeamID = strings.TrimSpace(event.TeamID)
	if event.LeagueID == "" || event.TeamID == "" {
		return fmt.Errorf("%w: roster event %s has no league or team", ErrInvalidInput, event.EventID)
	}

	p := pool.New().WithErrors().WithContext(ctx)
	if h.snapshots != nil && event.Action != ledger.ActionCorrection {
		p.Go(func(ctx context.Context) error {
			result, err := h.snapshots.SyncDailySnapshotsForTeam(ctx, event.LeagueID, event.TeamID)
			if err != nil {
				return fmt.Errorf("sync snapshots team=%s: %w", event.TeamID, err)
			}
			h.logger.DebugContext(ctx, "snapshots synced from roster event",
				"event_id", event.EventID,
				"team_id", event.TeamID,
				"days_written", result.DaysWritten,
				"rows_upserted", result.RowsUpserted,
				"rows_deleted", result.RowsDeleted,
			)
			return nil
		})
	}
	if h.waivers != nil && entersWaivers(event) {
		p.Go(func(ctx context.Context) error {
			if err := h.waivers.PlaceOnWaivers(ctx, event.LeagueID, event.DroppedPlayerID, event.TeamID); err != nil {
				return fmt.Errorf("place dropped player on waivers player=%s: %w", event.DroppedPlayerID, err)
			}
			return nil
		})
	}
	p.Go(func(ctx context.Context) error {
		h.notify(ctx, event)
		return nil
	})

	err := p.Wait()
	if err != nil {
		h.logger.ErrorContext(ctx, "roster event handling failed",
			"event_id", event.EventID,
			"league_id", event.LeagueID,
			"team_id", event.TeamID,
			"error", err,
		)
	}
	return err
}

// notify is the hand-off point for notification delivery, which lives
// outside this service. Consumers read the structured log line.
func (h *RosterEventHandlers) notify(ctx context.Context, event rosterevent.RosterChanged) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	h.logger.InfoContext(ctx, "roster changed",
		"event_id", event.EventID,
		"league_id", event.LeagueID,
		"team_id", event.TeamID,
		"action", event.Action,
		"source", event.Source,
		"added_player_id", event.AddedPlayerID,
		"dropped_player_id", event.DroppedPlayerID,
		"ledger_entry_id", event.LedgerEntryID,
	)
}

// entersWaivers reports whether the event released a player through a team
// decision. Admin and system fixes do not put players on the wire.
func entersWaivers(event rosterevent.RosterChanged) bool {
	if event.DroppedPlayerID == "" {
		return false
	}
	return event.Source == ledger.SourceManual || event.Source == ledger.SourceWaiver
}

package httpapi

import (
	"net/http"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

func (h *Handler) GetDailySnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDailySnapshot")
	defer span.End()

	day, err := parseDay(r.PathValue("day"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := r.PathValue("leagueID")
	teamID := r.PathValue("teamID")
	matchupID := r.PathValue("matchupID")
	item, err := h.snapshotService.GetDailySnapshot(ctx, leagueID, teamID, matchupID, day)
	if err != nil {
		h.logger.WarnContext(ctx, "get daily snapshot failed",
			"league_id", leagueID,
			"team_id", teamID,
			"matchup_id", matchupID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, dailySnapshotToDTO(item))
}

func (h *Handler) CorrectSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CorrectSnapshot")
	defer span.End()

	var req snapshotCorrectionRequest
	if err := h.decodeAndValidate(ctx, r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	day, err := parseDay(req.Day)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	err = h.snapshotService.CorrectLockedDay(ctx, usecase.CorrectLockedDayInput{
		LeagueID:    req.LeagueID,
		TeamID:      req.TeamID,
		MatchupID:   req.MatchupID,
		PlayerID:    req.PlayerID,
		Day:         day,
		Status:      roster.Status(req.Status),
		Slot:        roster.Slot(req.Slot),
		Remove:      req.Remove,
		ActorUserID: req.ActorUserID,
		Reason:      req.Reason,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "snapshot correction failed",
			"league_id", req.LeagueID,
			"team_id", req.TeamID,
			"player_id", req.PlayerID,
			"day", req.Day,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"corrected": true})
}

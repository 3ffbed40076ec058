package httpapi

import (
	"net/http"

	"github.com/riskibarqy/fantasy-roster/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRoster")
	defer span.End()

	leagueID := r.PathValue("leagueID")
	teamID := r.PathValue("teamID")
	entry, err := h.rosterEngine.GetRosterEntry(ctx, leagueID, teamID)
	if err != nil {
		h.logger.WarnContext(ctx, "get roster failed", "league_id", leagueID, "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(entry))
}

func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLedger")
	defer span.End()

	limit, err := queryLimit(r, 100)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := r.PathValue("leagueID")
	teamID := r.PathValue("teamID")
	items, err := h.rosterEngine.ListLedger(ctx, leagueID, teamID, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "list ledger failed", "league_id", leagueID, "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, ledgerEntriesToDTO(items))
}

func (h *Handler) ApplyRosterMove(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ApplyRosterMove")
	defer span.End()

	userID, err := requirePrincipalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req rosterMoveRequest
	if err := h.decodeAndValidate(ctx, r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := r.PathValue("leagueID")
	teamID := r.PathValue("teamID")
	result, err := h.rosterEngine.ApplyRosterMove(ctx, usecase.ApplyRosterMoveInput{
		LeagueID:     leagueID,
		TeamID:       teamID,
		AddPlayerID:  req.AddPlayerID,
		DropPlayerID: req.DropPlayerID,
		Status:       roster.Status(req.Status),
		Slot:         roster.Slot(req.Slot),
		Reason:       req.Reason,
		Source:       ledger.SourceManual,
		ActorUserID:  userID,
		EnforceOwner: true,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "apply roster move failed",
			"league_id", leagueID,
			"team_id", teamID,
			"user_id", userID,
			"add_player_id", req.AddPlayerID,
			"drop_player_id", req.DropPlayerID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterMoveToDTO(result))
}

func (h *Handler) MovePlayerSlot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MovePlayerSlot")
	defer span.End()

	userID, err := requirePrincipalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req slotMoveRequest
	if err := h.decodeAndValidate(ctx, r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := r.PathValue("leagueID")
	teamID := r.PathValue("teamID")
	playerID := r.PathValue("playerID")
	entry, err := h.rosterEngine.MovePlayerSlot(ctx, usecase.MovePlayerSlotInput{
		LeagueID:     leagueID,
		TeamID:       teamID,
		PlayerID:     playerID,
		Status:       roster.Status(req.Status),
		Slot:         roster.Slot(req.Slot),
		Reason:       req.Reason,
		Source:       ledger.SourceManual,
		ActorUserID:  userID,
		EnforceOwner: true,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "move player slot failed",
			"league_id", leagueID,
			"team_id", teamID,
			"player_id", playerID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(entry))
}

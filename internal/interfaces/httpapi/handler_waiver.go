package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

func (h *Handler) SubmitWaiverClaim(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitWaiverClaim")
	defer span.End()

	userID, err := requirePrincipalID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req waiverClaimRequest
	if err := h.decodeAndValidate(ctx, r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	leagueID := r.PathValue("leagueID")
	claim, err := h.waiverService.SubmitWaiverClaim(ctx, usecase.SubmitWaiverClaimInput{
		LeagueID:     leagueID,
		TeamID:       req.TeamID,
		AddPlayerID:  req.AddPlayerID,
		DropPlayerID: req.DropPlayerID,
		ActorUserID:  userID,
		EnforceOwner: true,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "submit waiver claim failed",
			"league_id", leagueID,
			"team_id", req.TeamID,
			"add_player_id", req.AddPlayerID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, waiverClaimToDTO(claim))
}

func (h *Handler) ListWaiverClaims(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListWaiverClaims")
	defer span.End()

	limit, err := queryLimit(r, 100)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	query := r.URL.Query()
	status := waiver.Status(strings.ToLower(strings.TrimSpace(query.Get("status"))))
	if status != "" && !status.Valid() {
		writeError(ctx, w, fmt.Errorf("%w: unknown claim status %q", usecase.ErrInvalidInput, status))
		return
	}

	leagueID := r.PathValue("leagueID")
	items, err := h.waiverService.ListClaims(ctx, waiver.ClaimFilter{
		LeagueID: leagueID,
		TeamID:   strings.TrimSpace(query.Get("team_id")),
		Status:   status,
		Limit:    limit,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "list waiver claims failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, waiverClaimsToDTO(items))
}

func (h *Handler) ListWaiverPriorities(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListWaiverPriorities")
	defer span.End()

	leagueID := r.PathValue("leagueID")
	items, err := h.waiverService.ListPriorities(ctx, leagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "list waiver priorities failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, waiverPrioritiesToDTO(items))
}

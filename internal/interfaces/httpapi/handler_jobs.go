package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

// leagueJob runs one league scoped job and returns the response payload.
type leagueJob func(ctx context.Context, req internalJobRequest) (any, error)

func (h *Handler) RunProcessWaiversJob(w http.ResponseWriter, r *http.Request) {
	h.runLeagueJob(w, r, "httpapi.Handler.RunProcessWaiversJob", jobscheduler.JobProcessWaivers, func(ctx context.Context, req internalJobRequest) (any, error) {
		return h.waiverService.ProcessWaiverBatch(ctx, req.LeagueID)
	})
}

func (h *Handler) RunClearWaiversJob(w http.ResponseWriter, r *http.Request) {
	h.runLeagueJob(w, r, "httpapi.Handler.RunClearWaiversJob", jobscheduler.JobClearWaivers, func(ctx context.Context, req internalJobRequest) (any, error) {
		cleared, err := h.waiverService.ClearExpiredWaivers(ctx, req.LeagueID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"league_id": req.LeagueID, "cleared": cleared}, nil
	})
}

func (h *Handler) RunRepairSnapshotsJob(w http.ResponseWriter, r *http.Request) {
	h.runLeagueJob(w, r, "httpapi.Handler.RunRepairSnapshotsJob", jobscheduler.JobRepairSnapshots, func(ctx context.Context, req internalJobRequest) (any, error) {
		return h.snapshotService.RepairMissingDays(ctx, req.LeagueID)
	})
}

func (h *Handler) RunLockDayJob(w http.ResponseWriter, r *http.Request) {
	h.runLeagueJob(w, r, "httpapi.Handler.RunLockDayJob", jobscheduler.JobLockDay, func(ctx context.Context, req internalJobRequest) (any, error) {
		day := time.Now().UTC()
		if strings.TrimSpace(req.Day) != "" {
			parsed, err := parseDay(req.Day)
			if err != nil {
				return nil, err
			}
			day = parsed
		}
		return h.snapshotService.LockDay(ctx, req.LeagueID, day)
	})
}

func (h *Handler) RunScheduleJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunScheduleJob")
	defer span.End()

	if h.jobOrchestrator == nil {
		writeError(ctx, w, fmt.Errorf("%w: job orchestrator is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req internalJobRequest
	if err := h.decodeAndValidate(ctx, r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.jobOrchestrator.RunWaiverSchedule(ctx, usecase.JobSyncInput{
		LeagueID: req.LeagueID,
		Force:    req.Force,
	})
	h.jobOrchestrator.MarkDispatchCompleted(ctx, req.DispatchID, "schedule", req.LeagueID, err)
	if err != nil {
		h.logger.WarnContext(ctx, "run schedule job failed", "league_id", req.LeagueID, "force", req.Force, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) ListJobDispatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListJobDispatches")
	defer span.End()

	if h.jobOrchestrator == nil {
		writeError(ctx, w, fmt.Errorf("%w: job orchestrator is not configured", usecase.ErrDependencyUnavailable))
		return
	}
	limit, err := queryLimit(r, 50)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	items, err := h.jobOrchestrator.ListDispatches(ctx, r.URL.Query().Get("league_id"), limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, dispatchesToDTO(items))
}

func (h *Handler) ReconcileRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ReconcileRoster")
	defer span.End()

	var req reconcileRosterRequest
	if err := h.decodeAndValidate(ctx, r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.rosterEngine.ReconcileFromLedger(ctx, usecase.ReconcileRosterInput{
		LeagueID:    req.LeagueID,
		TeamID:      req.TeamID,
		DryRun:      req.DryRun,
		ActorUserID: req.ActorUserID,
		Reason:      req.Reason,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "reconcile roster failed",
			"league_id", req.LeagueID,
			"team_id", req.TeamID,
			"dry_run", req.DryRun,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, reconcileToDTO(result))
}

func (h *Handler) runLeagueJob(w http.ResponseWriter, r *http.Request, spanName, jobName string, run leagueJob) {
	ctx, span := startSpan(r.Context(), spanName)
	defer span.End()

	var req internalJobRequest
	if err := h.decodeAndValidate(ctx, r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}
	req.LeagueID = strings.TrimSpace(req.LeagueID)
	if req.LeagueID == "" {
		writeError(ctx, w, fmt.Errorf("%w: league_id is required for %s", usecase.ErrInvalidInput, jobName))
		return
	}

	result, err := run(ctx, req)
	if h.jobOrchestrator != nil {
		h.jobOrchestrator.MarkDispatchCompleted(ctx, req.DispatchID, jobName, req.LeagueID, err)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "internal job failed",
			"job", jobName,
			"league_id", req.LeagueID,
			"dispatch_id", req.DispatchID,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

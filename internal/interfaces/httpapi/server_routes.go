package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, cfg RouterConfig) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if cfg.MetricsEnabled && cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}
	if !cfg.SwaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerPublicRosterRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/leagues/{leagueID}/teams/{teamID}/roster", handler.GetRoster)
	mux.HandleFunc("GET /v1/leagues/{leagueID}/teams/{teamID}/ledger", handler.ListLedger)
	mux.HandleFunc("GET /v1/leagues/{leagueID}/teams/{teamID}/snapshots/{matchupID}/{day}", handler.GetDailySnapshot)
	mux.HandleFunc("GET /v1/leagues/{leagueID}/waivers/claims", handler.ListWaiverClaims)
	mux.HandleFunc("GET /v1/leagues/{leagueID}/waivers/priorities", handler.ListWaiverPriorities)
}

func registerAuthorizedRosterRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/leagues/{leagueID}/teams/{teamID}/roster/moves", RequireAuth(verifier, http.HandlerFunc(handler.ApplyRosterMove)))
	mux.Handle("PUT /v1/leagues/{leagueID}/teams/{teamID}/roster/players/{playerID}/slot", RequireAuth(verifier, http.HandlerFunc(handler.MovePlayerSlot)))
	mux.Handle("POST /v1/leagues/{leagueID}/waivers/claims", RequireAuth(verifier, http.HandlerFunc(handler.SubmitWaiverClaim)))
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	internal := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, RequireInternalJobToken(internalJobToken, fn))
	}

	internal("POST /v1/internal/jobs/process-waivers", handler.RunProcessWaiversJob)
	internal("POST /v1/internal/jobs/clear-waivers", handler.RunClearWaiversJob)
	internal("POST /v1/internal/jobs/lock-day", handler.RunLockDayJob)
	internal("POST /v1/internal/jobs/repair-snapshots", handler.RunRepairSnapshotsJob)
	internal("POST /v1/internal/jobs/schedule", handler.RunScheduleJob)
	internal("GET /v1/internal/jobs/dispatches", handler.ListJobDispatches)
	internal("POST /v1/internal/repair/reconcile-roster", handler.ReconcileRoster)
	internal("POST /v1/internal/snapshots/corrections", handler.CorrectSnapshot)
}

package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/fantasy-roster/internal/domain/user"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/lock"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

const testJobToken = "job-secret"

type staticVerifier struct {
	tokens map[string]string
}

func (v staticVerifier) VerifyAccessToken(_ context.Context, token string) (user.Principal, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return user.Principal{}, usecase.ErrUnauthorized
	}
	return user.Principal{UserID: userID}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.NewNop()
	idGen := id.NewUUIDGenerator()
	leagues := memory.NewLeagueRepository(memory.SeedLeagues())
	teams := memory.NewTeamRepository(memory.SeedTeams())
	store := memory.NewRosterStore()
	waivers := memory.NewWaiverRepository()
	snapshots := memory.NewSnapshotRepository(memory.SeedMatchups(time.Now().UTC(), 2))

	engine := usecase.NewRosterEngine(leagues, teams, store, store, waivers, nil, idGen, logger)
	waiverSvc := usecase.NewWaiverService(leagues, teams, waivers, engine, store, lock.NewMemoryLocker(), idGen, usecase.WaiverConfig{}, logger)
	snapshotSvc := usecase.NewSnapshotService(leagues, teams, store, snapshots, store, idGen, usecase.SnapshotConfig{}, logger)
	jobs := usecase.NewJobOrchestratorService(leagues, snapshots, nil, memory.NewJobDispatchRepository(), usecase.JobOrchestratorConfig{}, logger)

	handler := NewHandler(engine, waiverSvc, snapshotSvc, jobs, logger)
	verifier := staticVerifier{tokens: map[string]string{"ana-token": "user-ana", "ben-token": "user-ben"}}
	return NewRouter(handler, verifier, RouterConfig{InternalJobToken: testJobToken}, logger)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	return body.Data
}

func TestRouter_RosterMoveRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/leagues/nhl-north-2026/teams/north-ice-owls/roster/moves", `{"add_player_id":"p-1"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouter_OwnerAppliesMoveAndReadsRoster(t *testing.T) {
	router := newTestRouter(t)
	auth := map[string]string{"Authorization": "Bearer ana-token"}

	rec := doRequest(t, router, http.MethodPost, "/v1/leagues/nhl-north-2026/teams/north-ice-owls/roster/moves", `{"add_player_id":"p-1"}`, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeData(t, rec)["applied_add"]; got != "p-1" {
		t.Fatalf("expected applied_add=p-1, got %v", got)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/leagues/nhl-north-2026/teams/north-ice-owls/roster", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeData(t, rec)["occupancy"]; got != float64(1) {
		t.Fatalf("expected occupancy=1, got %v", got)
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/leagues/nhl-north-2026/teams/north-blue-lines/roster/moves", `{"add_player_id":"p-1"}`, map[string]string{"Authorization": "Bearer ben-token"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for owned player, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouter_NonOwnerIsForbidden(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/leagues/nhl-north-2026/teams/north-ice-owls/roster/moves", `{"add_player_id":"p-2"}`, map[string]string{"Authorization": "Bearer ben-token"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouter_RejectsUnknownFields(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/leagues/nhl-north-2026/teams/north-ice-owls/roster/moves", `{"add_player_id":"p-1","bogus":true}`, map[string]string{"Authorization": "Bearer ana-token"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouter_InternalJobsRequireToken(t *testing.T) {
	router := newTestRouter(t)
	body := `{"league_id":"nhl-north-2026"}`

	rec := doRequest(t, router, http.MethodPost, "/v1/internal/jobs/process-waivers", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/internal/jobs/process-waivers", body, map[string]string{"X-Internal-Job-Token": testJobToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 with token, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouter_WaiverClaimLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/leagues/nhl-north-2026/waivers/claims", `{"team_id":"north-ice-owls","add_player_id":"p-9"}`, map[string]string{"Authorization": "Bearer ana-token"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeData(t, rec)["status"]; got != "pending" {
		t.Fatalf("expected pending claim, got %v", got)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/leagues/nhl-north-2026/waivers/claims?status=pending", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"p-9"`) {
		t.Fatalf("expected claim for p-9 in listing: %s", rec.Body.String())
	}
}

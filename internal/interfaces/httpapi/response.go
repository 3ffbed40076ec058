package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/snapshot"
	"github.com/riskibarqy/fantasy-roster/internal/domain/waiver"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "fantasy-roster"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

var internalError = mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "internalError", Status: "INTERNAL"}

type errorRule struct {
	targets []error
	mapped  mappedError
}

func conflict(reason string, targets ...error) errorRule {
	return errorRule{targets: targets, mapped: mappedError{HTTPStatus: http.StatusConflict, Reason: reason, Status: "ALREADY_EXISTS"}}
}

// errorRules is checked top to bottom. Domain conflicts come before the
// generic usecase categories because usecase errors often wrap them.
var errorRules = []errorRule{
	conflict("playerAlreadyOwned", roster.ErrPlayerAlreadyOwned),
	conflict("rosterFull", roster.ErrRosterFull),
	conflict("playerOnWaivers", waiver.ErrPlayerOnWaivers),
	conflict("duplicateClaim", waiver.ErrDuplicateClaim),
	conflict("claimNotPending", waiver.ErrClaimNotPending),
	conflict("dayLocked", snapshot.ErrDayLocked),
	{
		targets: []error{roster.ErrTeamHasNoOwner},
		mapped:  mappedError{HTTPStatus: http.StatusUnprocessableEntity, Reason: "teamHasNoOwner", Status: "FAILED_PRECONDITION"},
	},
	{
		targets: []error{usecase.ErrInvalidInput, roster.ErrInvalidSlot, roster.ErrPlayerNotOnRoster},
		mapped:  mappedError{HTTPStatus: http.StatusBadRequest, Reason: "invalidInput", Status: "INVALID_ARGUMENT"},
	},
	{
		targets: []error{usecase.ErrNotFound, roster.ErrLeagueNotFound, roster.ErrTeamNotFound, waiver.ErrClaimNotFound, snapshot.ErrMatchupNotFound},
		mapped:  mappedError{HTTPStatus: http.StatusNotFound, Reason: "notFound", Status: "NOT_FOUND"},
	},
	{
		targets: []error{usecase.ErrUnauthorized},
		mapped:  mappedError{HTTPStatus: http.StatusUnauthorized, Reason: "unauthorized", Status: "UNAUTHENTICATED"},
	},
	{
		targets: []error{usecase.ErrForbidden},
		mapped:  mappedError{HTTPStatus: http.StatusForbidden, Reason: "forbidden", Status: "PERMISSION_DENIED"},
	},
	conflict("conflict", usecase.ErrConflict),
	{
		targets: []error{usecase.ErrDependencyUnavailable},
		mapped:  mappedError{HTTPStatus: http.StatusServiceUnavailable, Reason: "dependencyUnavailable", Status: "UNAVAILABLE"},
	},
}

func mapError(err error) mappedError {
	for _, rule := range errorRules {
		for _, target := range rule.targets {
			if errors.Is(err, target) {
				return rule.mapped
			}
		}
	}
	return internalError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(_ context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, googleResponseEnvelope{APIVersion: googleAPIVersion, Data: data})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	mapped := mapError(err)
	if mapped.HTTPStatus >= http.StatusInternalServerError {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, mapped.Reason)
	}
	if mapped == internalError {
		writeInternalError(ctx, w)
		return
	}
	writeEnvelopeError(w, mapped, err.Error())
}

// writeInternalError never echoes the underlying error to the client.
func writeInternalError(_ context.Context, w http.ResponseWriter) {
	writeEnvelopeError(w, internalError, "internal server error")
}

func writeEnvelopeError(w http.ResponseWriter, mapped mappedError, msg string) {
	writeJSON(w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: msg,
			Status:  mapped.Status,
			Errors:  []googleErrorItem{{Domain: errorDomain, Reason: mapped.Reason, Message: msg}},
		},
	})
}

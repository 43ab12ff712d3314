package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldlens/reporting/internal/auth"
	"github.com/fieldlens/reporting/internal/domain"
)

// ReportExecutor is the engine surface the handler drives.
type ReportExecutor interface {
	ExecuteReport(ctx context.Context, cfg domain.ReportConfiguration) (domain.AggregatedData, error)
}

// Handler exposes report execution as an HTTP endpoint.
type Handler struct {
	engine ReportExecutor
}

// NewHandler wraps the engine with a POST endpoint.
func NewHandler(engine ReportExecutor) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg domain.ReportConfiguration
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("invalid report configuration: %v", err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if scope, ok := scopeFromHeaders(r); ok {
		ctx = auth.ContextWithScope(ctx, scope)
	}

	data, err := h.engine.ExecuteReport(ctx, cfg)
	if err != nil {
		status := statusFor(err)
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// statusFor maps the engine's error taxonomy to HTTP statuses so callers can
// distinguish an invalid report definition from a store problem.
func statusFor(err error) int {
	switch {
	case domain.IsConfiguration(err):
		return http.StatusBadRequest
	case domain.IsExecution(err):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// scopeFromHeaders lifts the scoping facts the permission layer forwards.
func scopeFromHeaders(r *http.Request) (auth.Scope, bool) {
	var scope auth.Scope
	if raw := strings.TrimSpace(r.Header.Get("X-Company-Id")); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			scope.CompanyID = id
		}
	}
	if raw := strings.TrimSpace(r.Header.Get("X-Program-Id")); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			scope.ProgramID = id
		}
	}
	return scope, !scope.Empty()
}

// Healthz is a liveness probe.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	repository "github.com/okian/hiscore/internal/adapters/repository"
	service "github.com/okian/hiscore/internal/app"
	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ProfileDependencies
	ChartDependencies
}

// ProfileDependencies covers the profile read and write operations.
type ProfileDependencies interface {
	ReadProfile(ctx context.Context, refID string) (types.Profile, error)
	Write(ctx context.Context, req types.WriteRequest) (types.WriteResult, error)
}

// ChartDependencies covers the per-chart debug view.
type ChartDependencies interface {
	Chart(ctx context.Context, refID string, c ledger.ChartID) (types.ChartView, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	profileHandler *ProfileHandler
	chartHandler   *ChartHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		profileHandler: NewProfileHandler(deps),
		chartHandler:   NewChartHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/profile/", MetricsMiddleware(s.profileHandler.HandleProfile, "profile"))
	mux.HandleFunc("/player/", MetricsMiddleware(s.chartHandler.HandleGetChart, "chart"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps a service error onto a status and error code.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidRefID):
		writeError(w, http.StatusBadRequest, "bad_ref_id", WrapKind(op, ErrRefID, err))
	case errors.Is(err, service.ErrTooManyStages):
		writeError(w, http.StatusRequestEntityTooLarge, "too_many_stages", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// pathRef splits the path after prefix into the ref id and the remaining
// segments.
func pathRef(path, prefix string) (string, []string) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", nil
	}
	parts := strings.Split(rest, "/")
	return parts[0], parts[1:]
}

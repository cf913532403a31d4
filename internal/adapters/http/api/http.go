// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/careconnect/internal/domain/viewmodel"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Title is the dashboard heading.
	Title() string

	// Mount starts the first fetch cycle; later calls are no-ops.
	Mount(ctx context.Context) (string, error)

	// Refresh supersedes the current cycle with a new one.
	Refresh(ctx context.Context) (string, error)

	// Snapshot and WaitSettled expose dashboard state.
	Snapshot() (viewmodel.Snapshot, error)
	WaitSettled(ctx context.Context) (viewmodel.Snapshot, error)
}

// Server wires HTTP routes for the dashboard.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	dashboardHandler *dashboardHandler
	snapshotHandler  *snapshotHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		dashboardHandler: newDashboardHandler(deps),
		snapshotHandler:  newSnapshotHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/dashboard", MetricsMiddleware(s.dashboardHandler.HandleDashboard, "dashboard"))
	mux.HandleFunc("/dashboard/refresh", MetricsMiddleware(s.dashboardHandler.HandleRefresh, "dashboard_refresh"))
	mux.HandleFunc("/api/dashboard", MetricsMiddleware(s.snapshotHandler.HandleSnapshot, "api_dashboard"))
	mux.HandleFunc("/api/dashboard/refresh", MetricsMiddleware(s.snapshotHandler.HandleRefresh, "api_dashboard_refresh"))
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

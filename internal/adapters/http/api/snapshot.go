package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/careconnect/internal/adapters/reportapi"
	"github.com/okian/careconnect/internal/domain/types"
	"github.com/okian/careconnect/internal/domain/viewmodel"
)

const maxWait = 30 * time.Second

type sectionResponse struct {
	Section   types.Section    `json:"section"`
	Title     string           `json:"title"`
	State     types.SliceState `json:"state"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	Error     *errorResponse   `json:"error,omitempty"`
	Rows      any              `json:"rows,omitempty"`
}

type dashboardResponse struct {
	Title      string            `json:"title"`
	CycleID    string            `json:"cycle_id"`
	Generation uint64            `json:"generation"`
	Mounted    bool              `json:"mounted"`
	Settled    bool              `json:"settled"`
	Sections   []sectionResponse `json:"sections"`
}

type refreshResponse struct {
	Status  string `json:"status"`
	CycleID string `json:"cycle_id"`
}

func newDashboardResponse(title string, snap viewmodel.Snapshot) dashboardResponse { //nolint:gocritic // hugeParam: snapshots are values
	resp := dashboardResponse{
		Title:      title,
		CycleID:    snap.CycleID,
		Generation: snap.Generation,
		Mounted:    snap.Mounted,
		Settled:    snap.Settled,
		Sections:   make([]sectionResponse, 0, 3),
	}
	for _, sec := range snap.Sections.List() {
		resp.Sections = append(resp.Sections, newSectionResponse(sec, snap))
	}
	return resp
}

func newSectionResponse(sec types.Section, snap viewmodel.Snapshot) sectionResponse { //nolint:gocritic // hugeParam: snapshots are values
	out := sectionResponse{Section: sec, Title: sec.Title(), State: snap.State(sec)}

	var updated time.Time
	switch sec {
	case types.SectionAppointments:
		updated = snap.Appointments.UpdatedAt
		if snap.Appointments.Loaded() {
			out.Rows = snap.Appointments.Data
		}
	case types.SectionNoShowRates:
		updated = snap.NoShowRates.UpdatedAt
		if snap.NoShowRates.Loaded() {
			out.Rows = snap.NoShowRates.Data
		}
	case types.SectionClinicReports:
		updated = snap.ClinicReports.UpdatedAt
		if snap.ClinicReports.Loaded() {
			out.Rows = snap.ClinicReports.Data
		}
	}
	if !updated.IsZero() {
		out.UpdatedAt = &updated
	}
	if err := snap.Err(sec); err != nil {
		out.Error = &errorResponse{Code: reportapi.ErrorKind(err), Message: err.Error()}
	}
	return out
}

// snapshotHandler serves the JSON view of the dashboard.
type snapshotHandler struct {
	deps Dependencies
}

func newSnapshotHandler(deps Dependencies) *snapshotHandler {
	return &snapshotHandler{deps: deps}
}

// HandleSnapshot handles GET /api/dashboard. Like the page it mounts the
// view on first use. An optional wait=<duration> blocks until the cycle
// settles or the wait elapses.
func (h *snapshotHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	wait, err := parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if _, err := h.deps.Mount(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}

	var snap viewmodel.Snapshot
	if wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		// A timed-out wait still returns the partial snapshot.
		snap, _ = h.deps.WaitSettled(ctx)
	} else {
		snap, err = h.deps.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, newDashboardResponse(h.deps.Title(), snap))
}

// HandleRefresh handles POST /api/dashboard/refresh.
func (h *snapshotHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	id, err := h.deps.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: "accepted", CycleID: id})
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid wait %q", ErrBadRequest, raw)
	}
	return min(d, maxWait), nil
}

package api

import (
	"bytes"
	"net/http"

	"github.com/okian/careconnect/internal/adapters/reportapi"
	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/viewmodel"
	"github.com/okian/careconnect/pkg/logger"
)

const pendingRefreshSeconds = 1

// sectionView is one rendered section. A nil section is disabled.
type sectionView[T any] struct {
	Pending bool
	Failed  bool
	Error   string
	Kind    string
	Rows    []T
}

func newSectionView[T any](s viewmodel.Slice[T]) *sectionView[T] {
	v := &sectionView[T]{Pending: s.Pending(), Failed: s.Failed(), Rows: s.Data}
	if s.Err != nil {
		v.Error = s.Err.Error()
		v.Kind = reportapi.ErrorKind(s.Err)
	}
	return v
}

type dashboardPage struct {
	Title          string
	CycleID        string
	Pending        bool
	RefreshSeconds int
	Appointments   *sectionView[model.AppointmentSummary]
	NoShowRates    *sectionView[model.NoShowRate]
	ClinicReports  *sectionView[model.ClinicReport]
}

func newDashboardPage(title string, snap viewmodel.Snapshot) dashboardPage { //nolint:gocritic // hugeParam: snapshots are values
	page := dashboardPage{
		Title:          title,
		CycleID:        snap.CycleID,
		Pending:        !snap.Settled,
		RefreshSeconds: pendingRefreshSeconds,
	}
	if snap.Sections.Appointments {
		page.Appointments = newSectionView(snap.Appointments)
	}
	if snap.Sections.NoShowRates {
		page.NoShowRates = newSectionView(snap.NoShowRates)
	}
	if snap.Sections.ClinicReports {
		page.ClinicReports = newSectionView(snap.ClinicReports)
	}
	return page
}

// dashboardHandler renders the reporting dashboard.
type dashboardHandler struct {
	deps Dependencies
	log  logger.Logger
}

func newDashboardHandler(deps Dependencies) *dashboardHandler {
	return &dashboardHandler{deps: deps, log: logger.Named("api")}
}

// HandleDashboard handles GET /dashboard. The first visit mounts the view
// and starts a fetch cycle; sections still loading show a placeholder and the
// page reloads itself until every section has settled.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if _, err := h.deps.Mount(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	snap, err := h.deps.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, newDashboardPage(h.deps.Title(), snap)); err != nil {
		h.log.Error(r.Context(), "render dashboard", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "render_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// HandleRefresh handles POST /dashboard/refresh from the page's button.
func (h *dashboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if _, err := h.deps.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

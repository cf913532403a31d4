package viewmodel

import (
	"time"

	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/types"
)

// Slice is one independently loadable piece of dashboard state.
type Slice[T any] struct {
	State     types.SliceState
	Data      []T
	Err       error
	UpdatedAt time.Time
}

func (s Slice[T]) Pending() bool { return s.State == types.StatePending }
func (s Slice[T]) Loaded() bool  { return s.State == types.StateLoaded }
func (s Slice[T]) Failed() bool  { return s.State == types.StateFailed }

// clone copies Data so snapshots never alias live state.
func (s Slice[T]) clone() Slice[T] {
	if s.Data != nil {
		s.Data = append([]T(nil), s.Data...)
	}
	return s
}

func resolve[T any](s *Slice[T], data []T, err error, at time.Time) {
	if err != nil {
		*s = Slice[T]{State: types.StateFailed, Err: err, UpdatedAt: at}
		return
	}
	if data == nil {
		data = []T{}
	}
	*s = Slice[T]{State: types.StateLoaded, Data: data, UpdatedAt: at}
}

// Sections toggles which reports the dashboard fetches and renders.
type Sections struct {
	Appointments  bool `json:"appointments"`
	NoShowRates   bool `json:"no_show_rates"`
	ClinicReports bool `json:"clinic_reports"`
}

// AllSections enables every report.
func AllSections() Sections {
	return Sections{Appointments: true, NoShowRates: true, ClinicReports: true}
}

// SectionsOf enables exactly the listed sections.
func SectionsOf(list []types.Section) Sections {
	var s Sections
	for _, sec := range list {
		switch sec {
		case types.SectionAppointments:
			s.Appointments = true
		case types.SectionNoShowRates:
			s.NoShowRates = true
		case types.SectionClinicReports:
			s.ClinicReports = true
		}
	}
	return s
}

// Enabled reports whether section is shown.
func (s Sections) Enabled(section types.Section) bool {
	switch section {
	case types.SectionAppointments:
		return s.Appointments
	case types.SectionNoShowRates:
		return s.NoShowRates
	case types.SectionClinicReports:
		return s.ClinicReports
	default:
		return false
	}
}

// List returns the enabled sections in display order.
func (s Sections) List() []types.Section {
	out := make([]types.Section, 0, 3)
	for _, sec := range types.AllSections() {
		if s.Enabled(sec) {
			out = append(out, sec)
		}
	}
	return out
}

// Snapshot is a consistent copy of the view model.
type Snapshot struct {
	CycleID    string
	Generation uint64
	Mounted    bool
	// Settled is true once every enabled slice of the cycle left pending.
	Settled   bool
	Sections  Sections
	StartedAt time.Time

	Appointments  Slice[model.AppointmentSummary]
	NoShowRates   Slice[model.NoShowRate]
	ClinicReports Slice[model.ClinicReport]
}

// State returns the state of one section's slice.
func (s Snapshot) State(section types.Section) types.SliceState {
	switch section {
	case types.SectionAppointments:
		return s.Appointments.State
	case types.SectionNoShowRates:
		return s.NoShowRates.State
	case types.SectionClinicReports:
		return s.ClinicReports.State
	default:
		return types.StatePending
	}
}

// Err returns the failure of one section's slice, if any.
func (s Snapshot) Err(section types.Section) error {
	switch section {
	case types.SectionAppointments:
		return s.Appointments.Err
	case types.SectionNoShowRates:
		return s.NoShowRates.Err
	case types.SectionClinicReports:
		return s.ClinicReports.Err
	default:
		return nil
	}
}

// Rows returns the number of loaded rows of one section's slice.
func (s Snapshot) Rows(section types.Section) int {
	switch section {
	case types.SectionAppointments:
		return len(s.Appointments.Data)
	case types.SectionNoShowRates:
		return len(s.NoShowRates.Data)
	case types.SectionClinicReports:
		return len(s.ClinicReports.Data)
	default:
		return 0
	}
}

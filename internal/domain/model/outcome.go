package model

import (
	"time"

	"github.com/okian/careconnect/internal/domain/types"
)

// Outcome is the explicit result of fetching one section: either the
// section's rows or an error, never both.
type Outcome struct {
	Section       types.Section
	Appointments  []AppointmentSummary
	NoShowRates   []NoShowRate
	ClinicReports []ClinicReport
	Err           error
	Latency       time.Duration
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Rows returns the number of rows carried for the outcome's section.
func (o Outcome) Rows() int {
	switch o.Section {
	case types.SectionAppointments:
		return len(o.Appointments)
	case types.SectionNoShowRates:
		return len(o.NoShowRates)
	case types.SectionClinicReports:
		return len(o.ClinicReports)
	default:
		return 0
	}
}

// Delivery is an Outcome tagged with the fetch cycle that produced it. The
// view model drops deliveries whose generation is no longer current.
type Delivery struct {
	CycleID    string
	Generation uint64
	Outcome
}

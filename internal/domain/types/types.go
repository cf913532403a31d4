// Package types contains common types used across the application
package types

import "fmt"

// Section names one independently-loadable part of the dashboard.
type Section string

// Dashboard sections, in render order.
const (
	SectionAppointments  Section = "appointments"
	SectionNoShowRates   Section = "no_show_rates"
	SectionClinicReports Section = "clinic_reports"
)

// AllSections lists every section in render order.
func AllSections() []Section {
	return []Section{SectionAppointments, SectionNoShowRates, SectionClinicReports}
}

// ParseSection maps a section name to its Section value.
func ParseSection(s string) (Section, error) {
	switch Section(s) {
	case SectionAppointments, SectionNoShowRates, SectionClinicReports:
		return Section(s), nil
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// Title returns the heading used when rendering the section.
func (s Section) Title() string {
	switch s {
	case SectionAppointments:
		return "Upcoming Appointments"
	case SectionNoShowRates:
		return "Top No-Show Rates"
	case SectionClinicReports:
		return "Clinic Summary"
	default:
		return string(s)
	}
}

// SliceState is the load state of a section.
type SliceState int

// Slice states. A slice only leaves Pending once per fetch cycle.
const (
	StatePending SliceState = iota
	StateLoaded
	StateFailed
)

func (s SliceState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name for JSON snapshots.
func (s SliceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state rendered by MarshalText.
func (s *SliceState) UnmarshalText(b []byte) error {
	v, err := ParseSliceState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSliceState maps a state name to its SliceState value.
func ParseSliceState(name string) (SliceState, error) {
	for _, s := range []SliceState{StatePending, StateLoaded, StateFailed} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown slice state %q", name)
}

// Settled reports whether the state is terminal for the current cycle.
func (s SliceState) Settled() bool {
	return s == StateLoaded || s == StateFailed
}

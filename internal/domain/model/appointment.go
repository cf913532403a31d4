// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// AppointmentStatus is the collaborator's appointment status. The set is
// open: values outside the known ones are kept verbatim.
type AppointmentStatus string

// Known appointment statuses.
const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Known reports whether s is one of the statuses the dashboard recognizes.
func (s AppointmentStatus) Known() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Label is the human-readable form used in tables, e.g. "no show".
func (s AppointmentStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// AppointmentSummary is one row of the upcoming appointments report.
// Identity is positional; the server's ordering is kept. Decoding normalizes
// StartDateTime to UTC, so a value built with another location round-trips
// to the same instant (time.Equal) but not to an identical struct.
type AppointmentSummary struct {
	StartDateTime time.Time         `json:"start_datetime"`
	Patient       string            `json:"patient"`
	Provider      string            `json:"provider"`
	ClinicName    string            `json:"clinic_name"`
	Status        AppointmentStatus `json:"status"`
}

// UnmarshalJSON decodes the collaborator's wire shape. Every field is
// required; timestamps may be RFC 3339, RFC 1123 or naive SQL datetimes.
func (a *AppointmentSummary) UnmarshalJSON(b []byte) error {
	var w struct {
		StartDateTime wireTime   `json:"start_datetime"`
		Patient       wireString `json:"patient"`
		Provider      wireString `json:"provider"`
		ClinicName    wireString `json:"clinic_name"`
		Status        wireString `json:"status"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if err := required(
		field{"start_datetime", w.StartDateTime.set},
		field{"patient", w.Patient.set},
		field{"provider", w.Provider.set},
		field{"clinic_name", w.ClinicName.set},
		field{"status", w.Status.set},
	); err != nil {
		return err
	}
	*a = AppointmentSummary{
		StartDateTime: w.StartDateTime.v,
		Patient:       w.Patient.v,
		Provider:      w.Provider.v,
		ClinicName:    w.ClinicName.v,
		Status:        AppointmentStatus(w.Status.v),
	}
	return nil
}

// Validate checks the invariants of a single appointment.
func (a AppointmentSummary) Validate() error {
	if a.StartDateTime.IsZero() {
		return &ValidationError{Index: -1, Entity: EntityAppointment, Field: "start_datetime", Reason: "must be set"}
	}
	if strings.TrimSpace(string(a.Status)) == "" {
		return &ValidationError{Index: -1, Entity: EntityAppointment, Field: "status", Value: a.Status, Reason: "must not be empty"}
	}
	return nil
}

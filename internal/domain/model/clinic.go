package model

import "encoding/json"

// ClinicReport is the per-clinic appointment and no-show tally.
type ClinicReport struct {
	ClinicName        string `json:"clinic_name"`
	TotalAppointments int64  `json:"total_appointments"`
	NoShows           int64  `json:"no_shows"`
}

// UnmarshalJSON accepts counts as JSON numbers or numeric strings; counts
// must be integral.
func (c *ClinicReport) UnmarshalJSON(b []byte) error {
	var w struct {
		ClinicName        wireString `json:"clinic_name"`
		TotalAppointments wireInt    `json:"total_appointments"`
		NoShows           wireInt    `json:"no_shows"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if err := required(
		field{"clinic_name", w.ClinicName.set},
		field{"total_appointments", w.TotalAppointments.set},
		field{"no_shows", w.NoShows.set},
	); err != nil {
		return err
	}
	*c = ClinicReport{
		ClinicName:        w.ClinicName.v,
		TotalAppointments: w.TotalAppointments.v,
		NoShows:           w.NoShows.v,
	}
	return nil
}

// Validate checks 0 <= no_shows <= total_appointments.
func (c ClinicReport) Validate() error {
	switch {
	case c.TotalAppointments < 0:
		return &ValidationError{Index: -1, Entity: EntityClinicReport, Field: "total_appointments", Value: c.TotalAppointments, Reason: "must not be negative"}
	case c.NoShows < 0:
		return &ValidationError{Index: -1, Entity: EntityClinicReport, Field: "no_shows", Value: c.NoShows, Reason: "must not be negative"}
	case c.NoShows > c.TotalAppointments:
		return &ValidationError{Index: -1, Entity: EntityClinicReport, Field: "no_shows", Value: c.NoShows, Reason: "must not exceed total_appointments"}
	}
	return nil
}

// NoShowPercent derives the clinic's no-show share for display. Zero
// appointments yield zero.
func (c ClinicReport) NoShowPercent() float64 {
	if c.TotalAppointments == 0 {
		return 0
	}
	return 100 * float64(c.NoShows) / float64(c.TotalAppointments)
}

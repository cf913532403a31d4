package model

import (
	"encoding/json"
	"math"
)

// NoShowRate bounds, in percent.
const (
	MinNoShowRate = 0.0
	MaxNoShowRate = 100.0
)

// NoShowRate is a provider's no-show percentage as computed by the collaborator.
type NoShowRate struct {
	Provider   string  `json:"provider"`
	NoShowRate float64 `json:"no_show_rate"`
}

// UnmarshalJSON accepts the rate as a JSON number or a numeric string.
func (n *NoShowRate) UnmarshalJSON(b []byte) error {
	var w struct {
		Provider   wireString `json:"provider"`
		NoShowRate wireFloat  `json:"no_show_rate"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if err := required(
		field{"provider", w.Provider.set},
		field{"no_show_rate", w.NoShowRate.set},
	); err != nil {
		return err
	}
	*n = NoShowRate{Provider: w.Provider.v, NoShowRate: w.NoShowRate.v}
	return nil
}

// Validate rejects rates that are not finite or fall outside [0, 100].
// Out-of-range values are a contract violation and are never clamped.
func (n NoShowRate) Validate() error {
	if math.IsNaN(n.NoShowRate) || math.IsInf(n.NoShowRate, 0) {
		return &ValidationError{Index: -1, Entity: EntityNoShowRate, Field: "no_show_rate", Value: n.NoShowRate, Reason: "must be finite"}
	}
	if n.NoShowRate < MinNoShowRate || n.NoShowRate > MaxNoShowRate {
		return &ValidationError{Index: -1, Entity: EntityNoShowRate, Field: "no_show_rate", Value: n.NoShowRate, Reason: "must be within [0, 100]"}
	}
	return nil
}

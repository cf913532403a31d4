package model

import (
	"errors"
	"fmt"
)

// Entity names used in validation errors.
const (
	EntityAppointment  = "appointment"
	EntityNoShowRate   = "no_show_rate"
	EntityClinicReport = "clinic_report"
)

// ErrValidation is the kind sentinel matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a decoded value that violates an entity invariant.
type ValidationError struct {
	Entity string
	// Index is the row position in the collection, or -1 for a single value.
	Index  int
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	at := e.Entity
	if e.Index >= 0 {
		at = fmt.Sprintf("%s[%d]", e.Entity, e.Index)
	}
	if e.Value != nil {
		return fmt.Sprintf("%s: %s.%s=%v %s", ErrValidation, at, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s %s", ErrValidation, at, e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validator is implemented by every report entity.
type Validator interface {
	Validate() error
}

// ValidateAll validates items in order and returns the first violation with
// its row index filled in.
func ValidateAll[T Validator](items []T) error {
	for i, it := range items {
		err := it.Validate()
		if err == nil {
			continue
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			cp := *ve
			cp.Index = i
			return &cp
		}
		return fmt.Errorf("row %d: %w", i, err)
	}
	return nil
}

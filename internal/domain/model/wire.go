package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order when decoding collaborator timestamps.
// RFC 1123 is what Flask emits for datetime values; the bare SQL layouts
// cover collaborators that pass MySQL DATETIME strings through unchanged.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a collaborator timestamp and normalizes it to UTC.
// Naive layouts are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

var errNotANumber = errors.New("expected a number or numeric string")

type wireString struct {
	v   string
	set bool
}

func (w *wireString) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	if err := json.Unmarshal(b, &w.v); err != nil {
		return fmt.Errorf("expected a string: %w", err)
	}
	w.set = true
	return nil
}

type wireTime struct {
	v   time.Time
	set bool
}

func (w *wireTime) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a timestamp string: %w", err)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	w.v, w.set = t, true
	return nil
}

type wireFloat struct {
	v   float64
	set bool
}

func (w *wireFloat) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	raw, err := numericLiteral(b)
	if err != nil {
		return err
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", errNotANumber, raw)
	}
	w.v, w.set = f, true
	return nil
}

type wireInt struct {
	v   int64
	set bool
}

func (w *wireInt) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	raw, err := numericLiteral(b)
	if err != nil {
		return err
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		w.v, w.set = i, true
		return nil
	}
	// Aggregates may arrive as "50.0" or 50.0.
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", errNotANumber, raw)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= 0x1p63 || f < -0x1p63 {
		return fmt.Errorf("expected an integer, got %q", raw)
	}
	w.v, w.set = int64(f), true
	return nil
}

// numericLiteral returns the text of a JSON number or of a string holding one.
func numericLiteral(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", errNotANumber
	}
	return n.String(), nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

type field struct {
	name string
	set  bool
}

// MissingFieldError reports a required field that was absent or null.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field " + strconv.Quote(e.Field)
}

func required(fields ...field) error {
	for _, f := range fields {
		if !f.set {
			return &MissingFieldError{Field: f.name}
		}
	}
	return nil
}

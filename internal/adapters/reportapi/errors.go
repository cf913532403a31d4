package reportapi

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/types"
)

// Sentinel kinds for fetch errors. Typed errors below match them via errors.Is.
var (
	ErrNetwork        = errors.New("network error")
	ErrDecode         = errors.New("decode error")
	ErrUnknownSection = errors.New("unknown report section")
	ErrFetchPanicked  = errors.New("report fetch panicked")
	ErrInvalidBaseURL = errors.New("invalid base url")
)

// Outcome kinds used for metrics and snapshots.
const (
	KindOK         = "ok"
	KindNetwork    = "network_error"
	KindDecode     = "decode_error"
	KindValidation = "validation_error"
	KindInternal   = "internal_error"
)

// NetworkError means the request could not be completed: DNS, connection,
// timeout, cancellation or a broken body stream.
type NetworkError struct {
	Section  types.Section
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: GET %s: %v", ErrNetwork, e.Section, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// Timeout reports whether the request hit its deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// DecodeError means a response arrived but does not match the expected
// report shape. Non-2xx responses are reported here with Status set.
type DecodeError struct {
	Section  types.Section
	Endpoint string
	Status   int
	Reason   string
	// Excerpt holds the start of the offending body for diagnostics.
	Excerpt string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s: %s: GET %s: %s", ErrDecode, e.Section, e.Endpoint, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ErrorKind classifies err into one of the Kind* labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, model.ErrValidation):
		return KindValidation
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	default:
		return KindInternal
	}
}

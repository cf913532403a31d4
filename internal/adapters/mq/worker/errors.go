package worker

import "errors"

// ErrApplyPanicked wraps a panic recovered from an Applier.
var ErrApplyPanicked = errors.New("delivery apply panicked")

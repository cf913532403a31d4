package queue

import "errors"

// ErrQueueFull is returned by callers that turn a rejected Enqueue into an error.
var ErrQueueFull = errors.New("delivery queue full or closed")

package engine

import (
	"matpool/internal/matrix"
	"matpool/internal/vector"
	"matpool/internal/worker"
)

// Failure taxonomy of a multiply call, re-exported so callers can match every
// case with errors.Is against this package alone.
var (
	ErrShapeMismatch  = matrix.ErrShapeMismatch
	ErrLengthMismatch = vector.ErrLengthMismatch
	ErrTaskRouting    = worker.ErrTaskRouting
	ErrReplyLost      = worker.ErrReplyLost
)

// Package engine multiplies dense matrices on a pool of worker goroutines.
//
// One product is split into one task per output cell. Task (i, j) carries a
// copy of row i of A, a copy of column j of B and the destination index
// i*B.Cols()+j. Tasks are routed round-robin by index across the workers of a
// pool built for the call, and every result is written back at the index it
// carries, so the output does not depend on completion order.
//
// # Basic Usage
//
//	e := engine.New[float64](engine.DefaultConfig())
//	c, err := e.Multiply(ctx, a, b)
//	if errors.Is(err, engine.ErrShapeMismatch) {
//	    // a.Cols() != b.Rows()
//	}
//
// # Failures
//
// A call either returns a complete matrix or an error; it never returns a
// partially written result. Task delivery failures are reported as
// ErrTaskRouting. A worker that panics, drops its reply or stays silent longer
// than Config.ReplyTimeout fails the call with ErrReplyLost. Cancelling ctx
// fails the call with the context error. The pool is always stopped and every
// worker joined before Multiply returns.
//
// # Convenience
//
// MustMultiply panics on any error. It exists for tests and examples; use
// Multiply everywhere else.
package engine

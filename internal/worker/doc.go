// Package worker provides the fixed goroutine pool that computes dot-product
// tasks for the multiplication engine.
//
// Each worker owns its own task queue. A task is routed to the queue at
// task.Index % NumWorkers, so routing is deterministic for a given input.
// Every task carries a private reply channel with room for exactly one Reply,
// which means a worker never blocks on answering.
//
// # Basic Usage
//
//	pool := worker.NewPool[float64](worker.DefaultPoolConfig())
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop()
//
//	task, reply := worker.NewTask(0, row, col)
//	if err := pool.Dispatch(ctx, task); err != nil {
//	    return err // wraps ErrTaskRouting
//	}
//	r := <-reply // r.Index == 0, r.Value == row·col
//
// # Lifecycle
//
// Stop closes every queue, lets the workers drain what was already queued and
// joins all of them before returning. Abort cancels the workers first, so
// queued tasks are abandoned. Both are idempotent, and a stopped pool cannot
// be restarted. A Dispatch blocked on a full queue when either is called
// returns an error wrapping ErrTaskRouting instead of holding up shutdown.
//
// # Failures
//
// A panic while computing a task is recovered; the worker answers with a
// Reply whose Err wraps ErrReplyLost and keeps serving its queue. An optional
// fault.Injector can force panics, delays or dropped replies for testing.
package worker

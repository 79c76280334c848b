// Package metrics instruments the multiplication engine.
//
// Metrics records one sample per multiply call: outcome, latency and the
// number of output cells produced. Counters is a fixed set of named atomic
// counters, used for per-worker task counts.
//
// # Basic Usage
//
//	m := metrics.New()
//	start := time.Now()
//	// ... multiply ...
//	m.RecordSuccess(time.Since(start), rows*cols)
//	snap := m.Snapshot()
//
//	c := metrics.NewCounters("tasks.dispatched", "worker.0.tasks")
//	_ = c.Inc("tasks.dispatched")
//	fmt.Print(c) // "tasks.dispatched: 1\nworker.0.tasks: 0\n"
//
// # Thread Safety
//
// Totals are atomic; latency samples are guarded by a RWMutex. Counters never
// takes a lock after construction because its key set is immutable.
package metrics

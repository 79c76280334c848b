// Package events provides lifecycle notifications for multiply jobs and workers.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventJobStarted is emitted when a multiply call passes validation and starts dispatching
	EventJobStarted EventType = "job_started"
	// EventJobCompleted is emitted when every cell of a product has been collected
	EventJobCompleted EventType = "job_completed"
	// EventJobFailed is emitted when a multiply call aborts
	EventJobFailed EventType = "job_failed"
	// EventWorkerFault is emitted when a worker panics or drops a reply
	EventWorkerFault EventType = "worker_fault"
	// EventBenchCompleted is emitted when a bench run finishes
	EventBenchCompleted EventType = "bench_completed"
)

// Event represents a job, worker or bench event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id,omitempty"`
	Data      EventData `json:"data"`
}

// EventData contains event-specific data
type EventData struct {
	Rows     int    `json:"rows,omitempty"`
	Cols     int    `json:"cols,omitempty"`
	Workers  int    `json:"workers,omitempty"`
	Duration string `json:"duration,omitempty"`
	Worker   int    `json:"worker"`
	Index    int    `json:"index"`
	Fault    string `json:"fault,omitempty"`
	Name     string `json:"name,omitempty"`
	Passed   bool   `json:"passed,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewJobStartedEvent creates an event for a job producing a rows×cols matrix
func NewJobStartedEvent(jobID string, rows, cols, workers int) Event {
	return Event{
		Type:      EventJobStarted,
		Timestamp: time.Now(),
		JobID:     jobID,
		Data: EventData{
			Rows:    rows,
			Cols:    cols,
			Workers: workers,
		},
	}
}

// NewJobCompletedEvent creates a job completion event
func NewJobCompletedEvent(jobID string, rows, cols int, elapsed time.Duration) Event {
	return Event{
		Type:      EventJobCompleted,
		Timestamp: time.Now(),
		JobID:     jobID,
		Data: EventData{
			Rows:     rows,
			Cols:     cols,
			Duration: elapsed.String(),
		},
	}
}

// NewJobFailedEvent creates a job failure event
func NewJobFailedEvent(jobID string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventJobFailed,
		Timestamp: time.Now(),
		JobID:     jobID,
		Data: EventData{
			Error: errMsg,
		},
	}
}

// NewWorkerFaultEvent creates an event for a worker that failed to answer task index
func NewWorkerFaultEvent(jobID string, worker, index int, fault string) Event {
	return Event{
		Type:      EventWorkerFault,
		Timestamp: time.Now(),
		JobID:     jobID,
		Data: EventData{
			Worker: worker,
			Index:  index,
			Fault:  fault,
		},
	}
}

// NewBenchCompletedEvent creates a bench completion event
func NewBenchCompletedEvent(name string, passed bool, elapsed time.Duration) Event {
	return Event{
		Type:      EventBenchCompleted,
		Timestamp: time.Now(),
		Data: EventData{
			Name:     name,
			Passed:   passed,
			Duration: elapsed.String(),
		},
	}
}

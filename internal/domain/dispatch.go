package domain

import "time"

// Operation is the remote call a split result is sent with.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// OperationFor picks update for persisted timers and create for new ones.
func OperationFor(t Timer) Operation {
	if t.Persisted() {
		return OperationUpdate
	}
	return OperationCreate
}

// DispatchResult is the outcome of sending one split result.
type DispatchResult struct {
	Timer        Timer
	Operation    Operation
	Saved        *Timer // what the remote returned; nil on failure
	Err          error
	DispatchedAt time.Time
}

// Succeeded reports whether the remote accepted the timer.
func (r DispatchResult) Succeeded() bool { return r.Err == nil }

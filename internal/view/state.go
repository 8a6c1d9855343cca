package view

import (
	"time"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
)

type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateErrored   State = "errored"
	StateCancelled State = "cancelled"
)

// Final reports whether the watch that produced this state has ended.
func (s State) Final() bool {
	switch s {
	case StateIdle, StatePolling:
		return false
	default:
		return true
	}
}

// Snapshot is what the view shows for a job at one point in time.
type Snapshot struct {
	JobID  string         `json:"job_id"`
	Family api.JobFamily  `json:"family"`
	State  State          `json:"state"`
	Status *api.JobStatus `json:"status,omitempty"`

	// EstimatedSecondsRemaining is nil until two forward progress readings arrived.
	EstimatedSecondsRemaining *int      `json:"estimated_seconds_remaining,omitempty"`
	EstimatedRemaining        string    `json:"estimated_remaining,omitempty"`
	Error                     string    `json:"error,omitempty"`
	UpdatedAt                 time.Time `json:"updated_at"`

	Err error `json:"-"`
}

// Progress returns the last known progress percentage.
func (s Snapshot) Progress() int {
	if s.Status == nil {
		return 0
	}
	return s.Status.Progress
}

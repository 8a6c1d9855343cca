package v1alpha1

import "encoding/json"

// JobFamily selects the endpoint, status vocabulary and poll timings of a job.
type JobFamily string

const (
	JobFamilyGeneric      JobFamily = "generic"
	JobFamilyTraining     JobFamily = "training"
	JobFamilyGeneration   JobFamily = "generation"
	JobFamilyHumanization JobFamily = "humanization"
	JobFamilyThesis       JobFamily = "thesis"
	JobFamilyScan         JobFamily = "scan"
)

// Status values reported by the backend. Not every family uses every value.
const (
	StatusPending    = "pending"
	StatusRunning    = "running"
	StatusTraining   = "training"
	StatusGenerating = "generating"
	StatusScanning   = "scanning"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// JobStatus is the status payload of an asynchronous job.
type JobStatus struct {
	JobId    string          `json:"job_id"`
	Status   string          `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    *string         `json:"error,omitempty"`
	Message  *string         `json:"message,omitempty"`
}

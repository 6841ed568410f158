package models

// ExecutionStatus represents the current state of a strategy execution
type ExecutionStatus string

const (
	// ExecutionIdle means the execution has not started yet
	ExecutionIdle ExecutionStatus = "idle"

	// ExecutionRunning means the execution is in progress
	ExecutionRunning ExecutionStatus = "running"

	// ExecutionCompleted means the execution finished successfully
	ExecutionCompleted ExecutionStatus = "completed"

	// ExecutionError means the execution failed
	ExecutionError ExecutionStatus = "error"
)

// ExecutionLog is the live, ephemeral document for one execution. It exists
// only while the execution runs (and briefly after) and is deleted on flush.
type ExecutionLog struct {
	// Status of the execution
	Status ExecutionStatus `json:"status"`

	// Events appended so far, in insertion order
	Events []Event `json:"events"`
}

// ExecutionSnapshot is one entry of a batch snapshot response: an execution
// id together with its live log.
type ExecutionSnapshot struct {
	// ExecutionID identifies the execution
	ExecutionID string `json:"execution_id"`

	// Status of the execution
	Status ExecutionStatus `json:"status"`

	// Events appended so far
	Events []Event `json:"events"`
}

// ExecutionResult is the summary returned to callers of Execute. Errors from
// the wrapped strategy logic never escape as raw errors; they surface here.
type ExecutionResult struct {
	// Success indicates whether the strategy run completed
	Success bool `json:"success"`

	// Message is a human-readable summary
	Message string `json:"message"`
}

package models

import (
	"time"
)

// Job represents a long-running batch job tracked in Redis
type Job struct {
	ID             string                 `json:"id"`
	Type           JobType                `json:"job_type"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"` // Executor input
	Priority       JobPriority            `json:"priority"`
	Status         JobStatus              `json:"status"`
	Progress       int                    `json:"progress_percent"` // 0-100
	Message        string                 `json:"message,omitempty"`
	Result         map[string]interface{} `json:"result,omitempty"`        // Executor output
	ErrorDetails   map[string]interface{} `json:"error_details,omitempty"` // Failure info
	RetryCount     int                    `json:"retry_count"`             // Max retries permitted
	Attempts       int                    `json:"attempts"`                // Retries consumed
	TimeoutSeconds int                    `json:"timeout_seconds"`
	WorkerID       string                 `json:"worker_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
}

// JobType represents the type of batch job
type JobType string

const (
	JobTypeDocumentIndex    JobType = "document_index"
	JobTypeBulkIndex        JobType = "bulk_index"
	JobTypeIndexMaintenance JobType = "index_maintenance"
	JobTypeVectorGeneration JobType = "vector_generation"
)

// JobStatus represents the current status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusRetrying  JobStatus = "retrying"
)

// JobPriority represents scheduling priority for a job
type JobPriority string

const (
	JobPriorityLow    JobPriority = "low"
	JobPriorityNormal JobPriority = "normal"
	JobPriorityHigh   JobPriority = "high"
	JobPriorityUrgent JobPriority = "urgent"
)

const (
	// MaxRetryCount bounds the retry budget a job may be created with.
	MaxRetryCount = 5

	// DefaultTimeoutSeconds is applied when a job is created without a timeout.
	DefaultTimeoutSeconds = 3600

	maxNameLength        = 200
	maxDescriptionLength = 500
)

// IsValid checks if job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeDocumentIndex, JobTypeBulkIndex,
		JobTypeIndexMaintenance, JobTypeVectorGeneration:
		return true
	default:
		return false
	}
}

// String returns the string representation of job type
func (t JobType) String() string {
	return string(t)
}

// JobTypes returns every dispatchable job type.
func JobTypes() []JobType {
	return []JobType{
		JobTypeDocumentIndex,
		JobTypeBulkIndex,
		JobTypeIndexMaintenance,
		JobTypeVectorGeneration,
	}
}

// IsValid checks if job status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled, JobStatusRetrying:
		return true
	default:
		return false
	}
}

// String returns the string representation of job status
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsValid checks if job priority is valid
func (p JobPriority) IsValid() bool {
	switch p {
	case JobPriorityLow, JobPriorityNormal, JobPriorityHigh, JobPriorityUrgent:
		return true
	default:
		return false
	}
}

// CanRetry returns true if the job still has retry budget left
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.RetryCount
}

// IsComplete returns true if the job is in a terminal state
func (j *Job) IsComplete() bool {
	return j.Status.IsTerminal()
}

// Duration returns the time taken to complete the job
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt == nil {
		return time.Since(*j.StartedAt)
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// JobCreate carries the fields a caller provides when creating a job
type JobCreate struct {
	Type           JobType                `json:"job_type"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	Priority       JobPriority            `json:"priority,omitempty"`
	RetryCount     int                    `json:"retry_count,omitempty"`
	TimeoutSeconds int                    `json:"timeout_seconds,omitempty"`
}

// Validate checks the create request and applies defaults in place
func (c *JobCreate) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "job name is required"}
	}
	if len(c.Name) > maxNameLength {
		return &ValidationError{Field: "name", Message: "job name exceeds 200 characters"}
	}
	if len(c.Description) > maxDescriptionLength {
		return &ValidationError{Field: "description", Message: "description exceeds 500 characters"}
	}
	if !c.Type.IsValid() {
		return &ValidationError{Field: "job_type", Message: "invalid job type: " + string(c.Type)}
	}
	if c.RetryCount < 0 || c.RetryCount > MaxRetryCount {
		return &ValidationError{Field: "retry_count", Message: "retry count must be between 0 and 5"}
	}
	if c.TimeoutSeconds < 0 {
		return &ValidationError{Field: "timeout_seconds", Message: "timeout cannot be negative"}
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Priority == "" {
		c.Priority = JobPriorityNormal
	}
	if !c.Priority.IsValid() {
		return &ValidationError{Field: "priority", Message: "invalid priority: " + string(c.Priority)}
	}
	return nil
}

// JobUpdate carries a partial update; nil fields are left untouched
type JobUpdate struct {
	Status       *JobStatus             `json:"status,omitempty"`
	Progress     *int                   `json:"progress_percent,omitempty"`
	Message      *string                `json:"message,omitempty"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorDetails map[string]interface{} `json:"error_details,omitempty"`
	Attempts     *int                   `json:"attempts,omitempty"`
	WorkerID     *string                `json:"worker_id,omitempty"`
}

// JobStats summarizes the job population by status
type JobStats struct {
	TotalJobs          int      `json:"total_jobs"`
	PendingJobs        int      `json:"pending_jobs"`
	RunningJobs        int      `json:"running_jobs"`
	CompletedJobs      int      `json:"completed_jobs"`
	FailedJobs         int      `json:"failed_jobs"`
	CancelledJobs      int      `json:"cancelled_jobs"`
	SuccessRatePercent *float64 `json:"success_rate_percent,omitempty"`
}

// StatusPtr is a convenience for building partial updates
func StatusPtr(s JobStatus) *JobStatus { return &s }

// IntPtr is a convenience for building partial updates
func IntPtr(i int) *int { return &i }

// StringPtr is a convenience for building partial updates
func StringPtr(s string) *string { return &s }

package repositories

import (
	"context"
	"errors"

	"docsearch/internal/models"
)

// ErrJobNotFound is the sentinel wrapped by JobNotFoundError.
var ErrJobNotFound = errors.New("job not found")

// JobRepository defines the persistence contract for batch job records.
// Redis is the single source of truth for job state; callers perform
// read-modify-write cycles through Get and Save.
type JobRepository interface {
	// Save creates or replaces a job record, resetting its TTL
	Save(ctx context.Context, job *models.Job) error

	// Get retrieves a job by id, returning a JobNotFoundError when missing
	Get(ctx context.Context, jobID string) (*models.Job, error)

	// Delete removes a job record and reports whether it existed
	Delete(ctx context.Context, jobID string) (bool, error)

	// List returns every stored job record
	List(ctx context.Context) ([]*models.Job, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// JobRepositoryError represents errors from the job repository
type JobRepositoryError struct {
	Operation string
	JobID     string
	Err       error
	Message   string
}

func (e *JobRepositoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	prefix := e.Operation
	if e.JobID != "" {
		prefix += " (job: " + e.JobID + ")"
	}
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	return prefix + ": unknown error"
}

func (e *JobRepositoryError) Unwrap() error {
	return e.Err
}

// NewJobRepositoryError creates a new job repository error
func NewJobRepositoryError(operation string, jobID string, err error, message string) *JobRepositoryError {
	return &JobRepositoryError{
		Operation: operation,
		JobID:     jobID,
		Err:       err,
		Message:   message,
	}
}

// Common error constructors

func JobNotFoundError(jobID string) error {
	return &JobRepositoryError{
		Operation: "get_job",
		JobID:     jobID,
		Err:       ErrJobNotFound,
		Message:   "job not found: " + jobID,
	}
}

func InvalidJobError(jobID string, reason string) error {
	return &JobRepositoryError{
		Operation: "validate_job",
		JobID:     jobID,
		Message:   "invalid job: " + reason,
	}
}

// IsJobNotFound reports whether err is a missing-job error
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

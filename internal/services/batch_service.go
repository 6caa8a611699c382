package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docsearch/internal/models"
	"docsearch/internal/repositories"
	"docsearch/internal/workers"
)

const (
	defaultListLimit  = 50
	terminalUpdateTTL = 10 * time.Second
)

// BatchService is the job manager: it owns job lifecycle (create, execute,
// cancel, retry, delete) with Redis as the single source of truth. The only
// state held outside Redis is the id to handle table for live executions.
type BatchService struct {
	repo     repositories.JobRepository
	runner   ExecutorResolver
	pool     *workers.Pool
	logger   Logger
	workerID string

	mu      sync.Mutex
	running map[string]*workers.Handle
}

// NewBatchService creates a job manager
func NewBatchService(repo repositories.JobRepository, runner ExecutorResolver, pool *workers.Pool, logger Logger) *BatchService {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	return &BatchService{
		repo:     repo,
		runner:   runner,
		pool:     pool,
		logger:   logger,
		workerID: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		running:  make(map[string]*workers.Handle),
	}
}

// CreateJob validates the request and stores a new pending job
func (s *BatchService) CreateJob(ctx context.Context, create models.JobCreate) (*models.Job, error) {
	if err := create.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:             uuid.NewString(),
		Type:           create.Type,
		Name:           create.Name,
		Description:    create.Description,
		Parameters:     create.Parameters,
		Priority:       create.Priority,
		Status:         models.JobStatusPending,
		Progress:       0,
		Message:        "Job created",
		RetryCount:     create.RetryCount,
		Attempts:       0,
		TimeoutSeconds: create.TimeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("Created job %s (%s): %s", job.ID, job.Type, job.Name)
	return job, nil
}

// GetJob retrieves a job by id. A missing job is (nil, nil), not an error.
func (s *BatchService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		if repositories.IsJobNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// UpdateJob merges a partial update into the stored job. Transition
// timestamps are stamped exactly once: started_at on the first move to
// running, completed_at on the first terminal status.
func (s *BatchService) UpdateJob(ctx context.Context, jobID string, update models.JobUpdate) (bool, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	now := time.Now().UTC()

	if update.Status != nil {
		job.Status = *update.Status
		if job.Status == models.JobStatusRunning && job.StartedAt == nil {
			job.StartedAt = &now
		}
		if job.Status.IsTerminal() && job.CompletedAt == nil {
			job.CompletedAt = &now
		}
	}
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if update.Message != nil {
		job.Message = *update.Message
	}
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.ErrorDetails != nil {
		job.ErrorDetails = update.ErrorDetails
	}
	if update.Attempts != nil {
		job.Attempts = *update.Attempts
	}
	if update.WorkerID != nil {
		job.WorkerID = *update.WorkerID
	}
	job.UpdatedAt = now

	if err := s.repo.Save(ctx, job); err != nil {
		return false, err
	}
	return true, nil
}

// ListJobs returns jobs filtered by status and type, newest first.
// A non-positive limit falls back to the default of 50.
func (s *BatchService) ListJobs(ctx context.Context, status *models.JobStatus, jobType *models.JobType, limit int) ([]*models.Job, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := jobs[:0]
	for _, job := range jobs {
		if status != nil && job.Status != *status {
			continue
		}
		if jobType != nil && job.Type != *jobType {
			continue
		}
		filtered = append(filtered, job)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// ExecuteJob starts a pending job on the worker pool. It returns false
// without error when the job is missing or not pending.
func (s *BatchService) ExecuteJob(ctx context.Context, jobID string) (bool, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		s.logger.Warn("Cannot execute unknown job %s", jobID)
		return false, nil
	}
	if job.Status != models.JobStatusPending {
		s.logger.Warn("Cannot execute job %s in status %s", jobID, job.Status)
		return false, nil
	}

	exec, err := s.runner.Executor(job.Type)
	if err != nil {
		s.logger.Error("Job %s has no executor: %v", jobID, err)
		if _, uerr := s.UpdateJob(ctx, jobID, models.JobUpdate{
			Status:  models.StatusPtr(models.JobStatusFailed),
			Message: models.StringPtr("Job failed"),
			ErrorDetails: map[string]interface{}{
				"error": err.Error(),
				"type":  "dispatch",
			},
		}); uerr != nil {
			return false, uerr
		}
		return false, nil
	}

	ok, err := s.UpdateJob(ctx, jobID, models.JobUpdate{
		Status:   models.StatusPtr(models.JobStatusRunning),
		Message:  models.StringPtr("Job started"),
		WorkerID: models.StringPtr(s.workerID),
	})
	if err != nil || !ok {
		return false, err
	}

	// The execution context is detached from the caller's: an HTTP
	// request ending must not kill the job. Cancellation flows through
	// the handle, the timeout through the job's own budget.
	runCtx := context.Background()
	release := context.CancelFunc(func() {})
	if job.TimeoutSeconds > 0 {
		runCtx, release = context.WithTimeout(runCtx, time.Duration(job.TimeoutSeconds)*time.Second)
	}

	progress := s.progressFunc(jobID)
	handle := s.pool.Submit(runCtx, func(taskCtx context.Context) (map[string]interface{}, error) {
		return exec(taskCtx, job, progress)
	})

	s.mu.Lock()
	s.running[jobID] = handle
	s.mu.Unlock()

	go s.supervise(jobID, handle, release)

	s.logger.Info("Started job %s (%s)", jobID, job.Type)
	return true, nil
}

// CancelJob cancels a pending or running job. Jobs already in a terminal
// state with no live handle are left untouched.
func (s *BatchService) CancelJob(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	handle, hasHandle := s.running[jobID]
	if hasHandle {
		delete(s.running, jobID)
	}
	s.mu.Unlock()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if !hasHandle && job.Status.IsTerminal() {
		return false, nil
	}

	// Mark cancelled before signalling the task so the supervisor never
	// races the terminal write
	ok, err := s.UpdateJob(ctx, jobID, models.JobUpdate{
		Status:       models.StatusPtr(models.JobStatusCancelled),
		Message:      models.StringPtr("Job cancelled by user"),
		ErrorDetails: map[string]interface{}{},
	})
	if hasHandle {
		handle.Cancel()
	}
	if err != nil {
		return false, err
	}

	s.logger.Info("Cancelled job %s", jobID)
	return ok, nil
}

// RetryJob re-queues a failed job that still has retry budget and starts it
func (s *BatchService) RetryJob(ctx context.Context, jobID string) (bool, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if !job.CanRetry() {
		s.logger.Warn("Job %s cannot be retried (status %s, attempts %d/%d)",
			jobID, job.Status, job.Attempts, job.RetryCount)
		return false, nil
	}

	ok, err := s.UpdateJob(ctx, jobID, models.JobUpdate{
		Status:   models.StatusPtr(models.JobStatusPending),
		Progress: models.IntPtr(0),
		Message:  models.StringPtr("Job queued for retry"),
		Attempts: models.IntPtr(job.Attempts + 1),
	})
	if err != nil || !ok {
		return false, err
	}

	return s.ExecuteJob(ctx, jobID)
}

// DeleteJob removes a job record, cancelling it first if it is live
func (s *BatchService) DeleteJob(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	_, hasHandle := s.running[jobID]
	s.mu.Unlock()

	if hasHandle {
		if _, err := s.CancelJob(ctx, jobID); err != nil {
			s.logger.Warn("Failed to cancel job %s before delete: %v", jobID, err)
		}
	}

	return s.repo.Delete(ctx, jobID)
}

// Statistics summarizes the whole job population by status
func (s *BatchService) Statistics(ctx context.Context) (*models.JobStats, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.JobStats{TotalJobs: len(jobs)}
	for _, job := range jobs {
		switch job.Status {
		case models.JobStatusPending:
			stats.PendingJobs++
		case models.JobStatusRunning:
			stats.RunningJobs++
		case models.JobStatusCompleted:
			stats.CompletedJobs++
		case models.JobStatusFailed:
			stats.FailedJobs++
		case models.JobStatusCancelled:
			stats.CancelledJobs++
		}
	}

	if finished := stats.CompletedJobs + stats.FailedJobs; finished > 0 {
		rate := float64(stats.CompletedJobs) / float64(finished) * 100
		stats.SuccessRatePercent = &rate
	}
	return stats, nil
}

// CleanupOldJobs deletes terminal jobs created before the cutoff and
// returns how many were removed
func (s *BatchService) CleanupOldJobs(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	jobs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, job := range jobs {
		if !job.Status.IsTerminal() || !job.CreatedAt.Before(cutoff) {
			continue
		}
		existed, err := s.repo.Delete(ctx, job.ID)
		if err != nil {
			s.logger.Warn("Failed to delete old job %s: %v", job.ID, err)
			continue
		}
		if existed {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("Cleaned up %d jobs older than %d days", removed, days)
	}
	return removed, nil
}

// RunningJobs returns the ids of jobs with a live handle
func (s *BatchService) RunningJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// supervise waits for a job's outcome and writes the terminal update.
// A cancelled task writes nothing: the cancel path already recorded the
// terminal state. The write is also guarded by a status re-check so a
// cancel landing after the task finished is never overwritten.
func (s *BatchService) supervise(jobID string, handle *workers.Handle, release context.CancelFunc) {
	outcome := <-handle.Done()
	release()

	s.mu.Lock()
	delete(s.running, jobID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), terminalUpdateTTL)
	defer cancel()

	if !errors.Is(outcome.Err, context.Canceled) {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			s.logger.Error("Failed to read job %s before terminal update: %v", jobID, err)
			return
		}
		if job == nil || job.Status != models.JobStatusRunning {
			s.logger.Info("Job %s already left running state, skipping terminal update", jobID)
			return
		}
	}

	switch {
	case outcome.Err == nil:
		if _, err := s.UpdateJob(ctx, jobID, models.JobUpdate{
			Status:   models.StatusPtr(models.JobStatusCompleted),
			Progress: models.IntPtr(100),
			Message:  models.StringPtr("Job completed successfully"),
			Result:   outcome.Result,
		}); err != nil {
			s.logger.Error("Failed to record completion of job %s: %v", jobID, err)
		} else {
			s.logger.Info("Job %s completed", jobID)
		}

	case errors.Is(outcome.Err, context.Canceled):
		s.logger.Info("Job %s cancelled", jobID)

	default:
		if _, err := s.UpdateJob(ctx, jobID, models.JobUpdate{
			Status:  models.StatusPtr(models.JobStatusFailed),
			Message: models.StringPtr("Job failed"),
			ErrorDetails: map[string]interface{}{
				"error": outcome.Err.Error(),
				"type":  errorKind(outcome.Err),
			},
		}); err != nil {
			s.logger.Error("Failed to record failure of job %s: %v", jobID, err)
		} else {
			s.logger.Error("Job %s failed: %v", jobID, outcome.Err)
		}
	}
}

// progressFunc builds the callback executors use to report progress.
// Updates are dropped once the job has left the running state so a late
// report never disturbs a terminal record.
func (s *BatchService) progressFunc(jobID string) ProgressFunc {
	return func(percent int, message string) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		job, err := s.GetJob(ctx, jobID)
		if err != nil || job == nil || job.Status != models.JobStatusRunning {
			return
		}
		if _, err := s.UpdateJob(ctx, jobID, models.JobUpdate{
			Progress: models.IntPtr(percent),
			Message:  models.StringPtr(message),
		}); err != nil {
			s.logger.Warn("Failed to update progress for job %s: %v", jobID, err)
		}
	}
}

// errorKind classifies an executor error for the error_details record
func errorKind(err error) string {
	var panicErr *workers.TaskPanicError
	var validationErr *models.ValidationError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &panicErr):
		return "panic"
	case errors.As(err, &validationErr):
		return "validation"
	default:
		return "error"
	}
}

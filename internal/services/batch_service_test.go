package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/models"
	"docsearch/internal/repositories"
	"docsearch/internal/workers"
)

// memoryJobRepository is an in-memory JobRepository for service tests.
// Values are copied on the way in and out, like a real serializing store.
type memoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

func newMemoryJobRepository() *memoryJobRepository {
	return &memoryJobRepository{jobs: make(map[string]models.Job)}
}

func (r *memoryJobRepository) Save(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepository) Get(ctx context.Context, jobID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, repositories.JobNotFoundError(jobID)
	}
	copied := job
	return &copied, nil
}

func (r *memoryJobRepository) Delete(ctx context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[jobID]
	delete(r.jobs, jobID)
	return ok, nil
}

func (r *memoryJobRepository) List(ctx context.Context) ([]*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		copied := job
		jobs = append(jobs, &copied)
	}
	return jobs, nil
}

func (r *memoryJobRepository) Ping(ctx context.Context) error { return nil }
func (r *memoryJobRepository) Close() error                   { return nil }

// stubResolver maps job types to canned executors
type stubResolver struct {
	execs map[models.JobType]Executor
}

func (r *stubResolver) Executor(jobType models.JobType) (Executor, error) {
	exec, ok := r.execs[jobType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for job type: %s", jobType)
	}
	return exec, nil
}

func newTestBatchService(t *testing.T, execs map[models.JobType]Executor) (*BatchService, *memoryJobRepository) {
	t.Helper()
	repo := newMemoryJobRepository()
	pool := workers.NewPool(workers.PoolConfig{Size: 2})
	service := NewBatchService(repo, &stubResolver{execs: execs}, pool, nil)
	return service, repo
}

func mustCreateJob(t *testing.T, service *BatchService, create models.JobCreate) *models.Job {
	t.Helper()
	job, err := service.CreateJob(context.Background(), create)
	require.NoError(t, err)
	return job
}

func waitForStatus(t *testing.T, service *BatchService, jobID string, want models.JobStatus) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = service.GetJob(context.Background(), jobID)
		return err == nil && job != nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s", jobID, want)
	return job
}

func TestBatchService_CreateJob(t *testing.T) {
	service, _ := newTestBatchService(t, nil)
	ctx := context.Background()

	t.Run("stores a pending job with defaults", func(t *testing.T) {
		job := mustCreateJob(t, service, models.JobCreate{
			Type: models.JobTypeDocumentIndex,
			Name: "index report",
		})

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Equal(t, models.JobPriorityNormal, job.Priority)
		assert.Equal(t, 0, job.Progress)
		assert.Equal(t, "Job created", job.Message)
		assert.Equal(t, models.DefaultTimeoutSeconds, job.TimeoutSeconds)
		assert.Nil(t, job.StartedAt)

		stored, err := service.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, job.ID, stored.ID)
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		_, err := service.CreateJob(ctx, models.JobCreate{Type: "bogus", Name: "x"})
		assert.Error(t, err)

		_, err = service.CreateJob(ctx, models.JobCreate{Type: models.JobTypeBulkIndex})
		assert.Error(t, err)
	})
}

func TestBatchService_GetJob_Missing(t *testing.T) {
	service, _ := newTestBatchService(t, nil)

	job, err := service.GetJob(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestBatchService_ExecuteJob_Completes(t *testing.T) {
	service, _ := newTestBatchService(t, map[models.JobType]Executor{
		models.JobTypeDocumentIndex: func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
			report(50, "halfway")
			return map[string]interface{}{"document_id": "d1"}, nil
		},
	})
	ctx := context.Background()

	job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})

	started, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, started)

	done := waitForStatus(t, service, job.ID, models.JobStatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "Job completed successfully", done.Message)
	assert.Equal(t, "d1", done.Result["document_id"])
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.NotEmpty(t, done.WorkerID)
}

func TestBatchService_ExecuteJob_OnlyPending(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	service, _ := newTestBatchService(t, map[models.JobType]Executor{
		models.JobTypeDocumentIndex: func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
			<-block
			return nil, nil
		},
	})
	ctx := context.Background()

	job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})

	started, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, started)

	// The job is now running; a second execute is refused
	again, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, again)

	missing, err := service.ExecuteJob(ctx, "no-such-job")
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestBatchService_ExecuteJob_DispatchFailure(t *testing.T) {
	service, _ := newTestBatchService(t, nil)
	ctx := context.Background()

	job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeVectorGeneration, Name: "vectors"})

	started, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, started)

	failed, err := service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.Equal(t, "dispatch", failed.ErrorDetails["type"])
}

func TestBatchService_ExecuteJob_ExecutorError(t *testing.T) {
	service, _ := newTestBatchService(t, map[models.JobType]Executor{
		models.JobTypeDocumentIndex: func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
			return nil, fmt.Errorf("disk full")
		},
	})
	ctx := context.Background()

	job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})
	_, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)

	failed := waitForStatus(t, service, job.ID, models.JobStatusFailed)
	assert.Equal(t, "Job failed", failed.Message)
	assert.Equal(t, "disk full", failed.ErrorDetails["error"])
	assert.Equal(t, "error", failed.ErrorDetails["type"])
	assert.NotNil(t, failed.CompletedAt)
}

func TestBatchService_ExecuteJob_Timeout(t *testing.T) {
	service, _ := newTestBatchService(t, map[models.JobType]Executor{
		models.JobTypeDocumentIndex: func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	ctx := context.Background()

	job := mustCreateJob(t, service, models.JobCreate{
		Type:           models.JobTypeDocumentIndex,
		Name:           "slow index",
		TimeoutSeconds: 1,
	})
	_, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)

	failed := waitForStatus(t, service, job.ID, models.JobStatusFailed)
	assert.Equal(t, "timeout", failed.ErrorDetails["type"])
}

func TestBatchService_ExecuteJob_PanicIsContained(t *testing.T) {
	service, _ := newTestBatchService(t, map[models.JobType]Executor{
		models.JobTypeDocumentIndex: func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
			panic("executor exploded")
		},
	})
	ctx := context.Background()

	job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})
	_, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)

	failed := waitForStatus(t, service, job.ID, models.JobStatusFailed)
	assert.Equal(t, "panic", failed.ErrorDetails["type"])
}

func TestBatchService_CancelJob(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels a running job without a later overwrite", func(t *testing.T) {
		entered := make(chan struct{})
		service, _ := newTestBatchService(t, map[models.JobType]Executor{
			models.JobTypeDocumentIndex: func(taskCtx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
				close(entered)
				<-taskCtx.Done()
				return nil, taskCtx.Err()
			},
		})

		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})
		_, err := service.ExecuteJob(ctx, job.ID)
		require.NoError(t, err)
		<-entered

		ok, err := service.CancelJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		cancelled, err := service.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
		assert.Equal(t, "Job cancelled by user", cancelled.Message)

		// The supervisor must not rewrite the record after cancellation
		time.Sleep(200 * time.Millisecond)
		later, err := service.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, later.Status)
		assert.Empty(t, service.RunningJobs())
	})

	t.Run("cancels a pending job", func(t *testing.T) {
		service, _ := newTestBatchService(t, nil)
		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "bulk"})

		ok, err := service.CancelJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		cancelled, _ := service.GetJob(ctx, job.ID)
		assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	})

	t.Run("terminal job without a handle is a no-op", func(t *testing.T) {
		service, repo := newTestBatchService(t, nil)
		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "bulk"})

		completed := models.JobStatusCompleted
		_, err := service.UpdateJob(ctx, job.ID, models.JobUpdate{Status: &completed})
		require.NoError(t, err)

		ok, err := service.CancelJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		stored, _ := repo.Get(ctx, job.ID)
		assert.Equal(t, models.JobStatusCompleted, stored.Status)
	})

	t.Run("missing job is a no-op", func(t *testing.T) {
		service, _ := newTestBatchService(t, nil)
		ok, err := service.CancelJob(ctx, "no-such-job")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBatchService_SuperviseKeepsCancelledRecord(t *testing.T) {
	ctx := context.Background()

	// A cancel can land after the executor finished but before the
	// supervisor's terminal write; the cancelled record must win.
	prepareCancelled := func(t *testing.T, service *BatchService) string {
		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})
		running := models.JobStatusRunning
		_, err := service.UpdateJob(ctx, job.ID, models.JobUpdate{Status: &running})
		require.NoError(t, err)
		cancelled := models.JobStatusCancelled
		_, err = service.UpdateJob(ctx, job.ID, models.JobUpdate{Status: &cancelled})
		require.NoError(t, err)
		return job.ID
	}

	t.Run("successful outcome does not overwrite", func(t *testing.T) {
		service, _ := newTestBatchService(t, nil)
		jobID := prepareCancelled(t, service)

		pool := workers.NewPool(workers.PoolConfig{Size: 1})
		handle := pool.Submit(ctx, func(taskCtx context.Context) (map[string]interface{}, error) {
			return map[string]interface{}{"done": true}, nil
		})
		service.supervise(jobID, handle, func() {})

		job, err := service.GetJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, job.Status)
		assert.Empty(t, job.Result)
	})

	t.Run("failed outcome does not overwrite", func(t *testing.T) {
		service, _ := newTestBatchService(t, nil)
		jobID := prepareCancelled(t, service)

		pool := workers.NewPool(workers.PoolConfig{Size: 1})
		handle := pool.Submit(ctx, func(taskCtx context.Context) (map[string]interface{}, error) {
			return nil, fmt.Errorf("late failure")
		})
		service.supervise(jobID, handle, func() {})

		job, err := service.GetJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, job.Status)
		assert.Empty(t, job.ErrorDetails)
	})
}

func TestBatchService_RetryJob(t *testing.T) {
	ctx := context.Background()

	t.Run("re-runs a failed job within its retry budget", func(t *testing.T) {
		var attempts int32
		var mu sync.Mutex
		service, _ := newTestBatchService(t, map[models.JobType]Executor{
			models.JobTypeDocumentIndex: func(taskCtx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
				mu.Lock()
				attempts++
				n := attempts
				mu.Unlock()
				if n == 1 {
					return nil, fmt.Errorf("transient failure")
				}
				return map[string]interface{}{"ok": true}, nil
			},
		})

		job := mustCreateJob(t, service, models.JobCreate{
			Type:       models.JobTypeDocumentIndex,
			Name:       "flaky index",
			RetryCount: 2,
		})
		_, err := service.ExecuteJob(ctx, job.ID)
		require.NoError(t, err)
		waitForStatus(t, service, job.ID, models.JobStatusFailed)

		ok, err := service.RetryJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		done := waitForStatus(t, service, job.ID, models.JobStatusCompleted)
		assert.Equal(t, 1, done.Attempts)
	})

	t.Run("refuses a job out of retry budget", func(t *testing.T) {
		service, _ := newTestBatchService(t, map[models.JobType]Executor{
			models.JobTypeDocumentIndex: func(taskCtx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
				return nil, fmt.Errorf("always fails")
			},
		})

		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})
		_, err := service.ExecuteJob(ctx, job.ID)
		require.NoError(t, err)
		waitForStatus(t, service, job.ID, models.JobStatusFailed)

		// RetryCount defaults to zero, so no retries are allowed
		ok, err := service.RetryJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("refuses a completed job", func(t *testing.T) {
		service, _ := newTestBatchService(t, nil)
		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "bulk", RetryCount: 3})

		completed := models.JobStatusCompleted
		_, err := service.UpdateJob(ctx, job.ID, models.JobUpdate{Status: &completed})
		require.NoError(t, err)

		ok, err := service.RetryJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBatchService_DeleteJob(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes a stored job", func(t *testing.T) {
		service, _ := newTestBatchService(t, nil)
		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "bulk"})

		existed, err := service.DeleteJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, existed)

		gone, err := service.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("cancels a running job before deleting", func(t *testing.T) {
		entered := make(chan struct{})
		service, _ := newTestBatchService(t, map[models.JobType]Executor{
			models.JobTypeDocumentIndex: func(taskCtx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
				close(entered)
				<-taskCtx.Done()
				return nil, taskCtx.Err()
			},
		})

		job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "index"})
		_, err := service.ExecuteJob(ctx, job.ID)
		require.NoError(t, err)
		<-entered

		existed, err := service.DeleteJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, existed)
		assert.Empty(t, service.RunningJobs())
	})

	t.Run("missing job reports false", func(t *testing.T) {
		service, _ := newTestBatchService(t, nil)
		existed, err := service.DeleteJob(ctx, "no-such-job")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestBatchService_ListJobs(t *testing.T) {
	service, _ := newTestBatchService(t, nil)
	ctx := context.Background()

	var jobs []*models.Job
	for i := 0; i < 5; i++ {
		job := mustCreateJob(t, service, models.JobCreate{
			Type: models.JobTypeBulkIndex,
			Name: fmt.Sprintf("bulk %d", i),
		})
		jobs = append(jobs, job)
		time.Sleep(2 * time.Millisecond)
	}
	single := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeDocumentIndex, Name: "single"})

	failed := models.JobStatusFailed
	_, err := service.UpdateJob(ctx, jobs[0].ID, models.JobUpdate{Status: &failed})
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		listed, err := service.ListJobs(ctx, nil, nil, 0)
		require.NoError(t, err)
		require.Len(t, listed, 6)
		assert.Equal(t, single.ID, listed[0].ID)
		for i := 1; i < len(listed); i++ {
			assert.False(t, listed[i].CreatedAt.After(listed[i-1].CreatedAt))
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		listed, err := service.ListJobs(ctx, &failed, nil, 0)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, jobs[0].ID, listed[0].ID)
	})

	t.Run("filter by type", func(t *testing.T) {
		docIndex := models.JobTypeDocumentIndex
		listed, err := service.ListJobs(ctx, nil, &docIndex, 0)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, single.ID, listed[0].ID)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		listed, err := service.ListJobs(ctx, nil, nil, 2)
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})
}

func TestBatchService_Statistics(t *testing.T) {
	service, _ := newTestBatchService(t, nil)
	ctx := context.Background()

	statuses := []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusCompleted,
		models.JobStatusCompleted,
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusCancelled,
	}
	for i, status := range statuses {
		job := mustCreateJob(t, service, models.JobCreate{
			Type: models.JobTypeBulkIndex,
			Name: fmt.Sprintf("job %d", i),
		})
		if status != models.JobStatusPending {
			s := status
			_, err := service.UpdateJob(ctx, job.ID, models.JobUpdate{Status: &s})
			require.NoError(t, err)
		}
	}

	stats, err := service.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalJobs)
	assert.Equal(t, 1, stats.PendingJobs)
	assert.Equal(t, 1, stats.RunningJobs)
	assert.Equal(t, 3, stats.CompletedJobs)
	assert.Equal(t, 1, stats.FailedJobs)
	assert.Equal(t, 1, stats.CancelledJobs)
	require.NotNil(t, stats.SuccessRatePercent)
	assert.InDelta(t, 75.0, *stats.SuccessRatePercent, 0.01)
}

func TestBatchService_Statistics_NoFinishedJobs(t *testing.T) {
	service, _ := newTestBatchService(t, nil)
	mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "pending"})

	stats, err := service.Statistics(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats.SuccessRatePercent)
}

func TestBatchService_CleanupOldJobs(t *testing.T) {
	service, repo := newTestBatchService(t, nil)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -10)

	oldDone := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "old done"})
	oldRunning := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "old running"})
	newDone := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "new done"})

	completed := models.JobStatusCompleted
	running := models.JobStatusRunning
	_, err := service.UpdateJob(ctx, oldDone.ID, models.JobUpdate{Status: &completed})
	require.NoError(t, err)
	_, err = service.UpdateJob(ctx, oldRunning.ID, models.JobUpdate{Status: &running})
	require.NoError(t, err)
	_, err = service.UpdateJob(ctx, newDone.ID, models.JobUpdate{Status: &completed})
	require.NoError(t, err)

	// Backdate the two old jobs directly in the store
	for _, id := range []string{oldDone.ID, oldRunning.ID} {
		stored, err := repo.Get(ctx, id)
		require.NoError(t, err)
		stored.CreatedAt = old
		require.NoError(t, repo.Save(ctx, stored))
	}

	removed, err := service.CleanupOldJobs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, _ := service.GetJob(ctx, oldDone.ID)
	assert.Nil(t, gone, "old terminal job should be removed")

	kept, _ := service.GetJob(ctx, oldRunning.ID)
	assert.NotNil(t, kept, "non-terminal jobs survive cleanup regardless of age")

	recent, _ := service.GetJob(ctx, newDone.ID)
	assert.NotNil(t, recent, "recent terminal jobs survive cleanup")
}

func TestBatchService_ProgressUpdates(t *testing.T) {
	reported := make(chan struct{})
	proceed := make(chan struct{})
	service, _ := newTestBatchService(t, map[models.JobType]Executor{
		models.JobTypeBulkIndex: func(taskCtx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
			report(40, "Indexed 2/5 files")
			close(reported)
			<-proceed
			return map[string]interface{}{}, nil
		},
	})
	ctx := context.Background()

	job := mustCreateJob(t, service, models.JobCreate{Type: models.JobTypeBulkIndex, Name: "bulk"})
	_, err := service.ExecuteJob(ctx, job.ID)
	require.NoError(t, err)

	<-reported
	require.Eventually(t, func() bool {
		current, err := service.GetJob(ctx, job.ID)
		return err == nil && current != nil && current.Progress == 40
	}, 2*time.Second, 10*time.Millisecond)

	current, err := service.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, current.Status)
	assert.Equal(t, "Indexed 2/5 files", current.Message)

	close(proceed)
	waitForStatus(t, service, job.ID, models.JobStatusCompleted)
}

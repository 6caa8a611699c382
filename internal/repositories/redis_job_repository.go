package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"docsearch/internal/db"
	"docsearch/internal/models"
)

const (
	// Namespace prefix for job records
	jobKeyPrefix = "batch_job:"

	// DefaultJobTTL bounds how long a job record lives without being rewritten.
	// Every Save resets the clock, so active jobs never expire mid-flight.
	DefaultJobTTL = 7 * 24 * time.Hour
)

// RedisJobRepository implements JobRepository using Redis.
// Records live under batch_job:<id> as JSON with a sliding TTL; listing is
// a prefix scan plus a pipelined batch read. A production-scale variant
// would maintain secondary indices, but the job population here is bounded
// by the TTL and stays small.
type RedisJobRepository struct {
	client *db.RedisClient
	ttl    time.Duration
}

// NewRedisJobRepository creates a new Redis-based job repository
func NewRedisJobRepository(client *db.RedisClient) *RedisJobRepository {
	return &RedisJobRepository{
		client: client,
		ttl:    DefaultJobTTL,
	}
}

// NewRedisJobRepositoryWithTTL creates a repository with a custom record TTL
func NewRedisJobRepositoryWithTTL(client *db.RedisClient, ttl time.Duration) *RedisJobRepository {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &RedisJobRepository{
		client: client,
		ttl:    ttl,
	}
}

// Save creates or replaces a job record, resetting its TTL
func (r *RedisJobRepository) Save(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return InvalidJobError("", "job ID is required")
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return NewJobRepositoryError("save_job", job.ID, err, "failed to marshal job")
	}

	if err := r.client.Set(ctx, jobKeyPrefix+job.ID, jobJSON, r.ttl); err != nil {
		return NewJobRepositoryError("save_job", job.ID, err, "")
	}

	return nil
}

// Get retrieves a job by ID
func (r *RedisJobRepository) Get(ctx context.Context, jobID string) (*models.Job, error) {
	jobJSON, err := r.client.Get(ctx, jobKeyPrefix+jobID)
	if err == redis.Nil {
		return nil, JobNotFoundError(jobID)
	}
	if err != nil {
		return nil, NewJobRepositoryError("get_job", jobID, err, "")
	}

	var job models.Job
	if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
		return nil, NewJobRepositoryError("get_job", jobID, err, "failed to unmarshal job")
	}

	return &job, nil
}

// Delete removes a job record and reports whether it existed
func (r *RedisJobRepository) Delete(ctx context.Context, jobID string) (bool, error) {
	deleted, err := r.client.Del(ctx, jobKeyPrefix+jobID)
	if err != nil {
		return false, NewJobRepositoryError("delete_job", jobID, err, "")
	}
	return deleted > 0, nil
}

// List returns every stored job record
func (r *RedisJobRepository) List(ctx context.Context) ([]*models.Job, error) {
	keys, err := r.client.Keys(ctx, jobKeyPrefix+"*")
	if err != nil {
		return nil, NewJobRepositoryError("list_jobs", "", err, "")
	}
	if len(keys) == 0 {
		return []*models.Job{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, NewJobRepositoryError("list_jobs", "", err, "failed to execute pipeline")
	}

	jobs := make([]*models.Job, 0, len(keys))
	for _, cmd := range cmds {
		jobJSON, err := cmd.Result()
		if err == redis.Nil {
			// Expired between the scan and the read
			continue
		}
		if err != nil {
			return nil, NewJobRepositoryError("list_jobs", "", err, "")
		}

		var job models.Job
		if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
			// Skip corrupt records rather than failing the whole listing
			continue
		}
		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// Ping checks if Redis is alive
func (r *RedisJobRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close releases the underlying connections
func (r *RedisJobRepository) Close() error {
	return r.client.Close()
}

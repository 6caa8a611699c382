package services

import (
	"context"
	"fmt"
	"sort"

	"docsearch/internal/models"
)

// ProgressFunc receives progress updates from a running executor
type ProgressFunc func(percent int, message string)

// Executor runs one job type's work. It returns the job result on
// success; an escaping error fails the job.
type Executor func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error)

// TaskRunner dispatches jobs to their executors. The registry is built
// once at construction and covers exactly the dispatchable job types;
// an unknown type is a resolution error, not a silent no-op.
type TaskRunner struct {
	executors map[models.JobType]Executor
}

// ExecutorResolver resolves a job type to its executor
type ExecutorResolver interface {
	Executor(jobType models.JobType) (Executor, error)
}

// NewTaskRunner builds the dispatch registry over a document processor
func NewTaskRunner(processor *DocumentProcessor) *TaskRunner {
	r := &TaskRunner{
		executors: make(map[models.JobType]Executor, 4),
	}

	r.executors[models.JobTypeDocumentIndex] = func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
		var params models.DocumentIndexParams
		if err := models.DecodeParams(job.Parameters, &params); err != nil {
			return nil, err
		}
		return processor.IndexDocument(ctx, params)
	}

	r.executors[models.JobTypeBulkIndex] = func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
		var params models.BulkIndexParams
		if err := models.DecodeParams(job.Parameters, &params); err != nil {
			return nil, err
		}
		return processor.BulkIndex(ctx, params, report)
	}

	r.executors[models.JobTypeIndexMaintenance] = func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
		var params models.IndexMaintenanceParams
		if err := models.DecodeParams(job.Parameters, &params); err != nil {
			return nil, err
		}
		return processor.RunMaintenance(ctx, params)
	}

	r.executors[models.JobTypeVectorGeneration] = func(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
		var params models.VectorGenerationParams
		if err := models.DecodeParams(job.Parameters, &params); err != nil {
			return nil, err
		}
		return processor.RegenerateVectors(ctx, params, report)
	}

	return r
}

// Executor resolves the executor for a job type
func (r *TaskRunner) Executor(jobType models.JobType) (Executor, error) {
	exec, ok := r.executors[jobType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for job type: %s", jobType)
	}
	return exec, nil
}

// Run resolves and invokes the executor for the given job
func (r *TaskRunner) Run(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
	exec, err := r.Executor(job.Type)
	if err != nil {
		return nil, err
	}
	return exec(ctx, job, report)
}

// Types lists the registered job types
func (r *TaskRunner) Types() []models.JobType {
	types := make([]models.JobType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

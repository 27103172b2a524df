package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
	"github.com/skillforge/skillforge-backend/internal/types"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 5
	DefaultRetryDelay   = 30 * time.Second
	DefaultStaleRunning = 2 * time.Minute
)

// Handler runs one job type.
type Handler interface {
	Type() string
	Run(ctx context.Context, job *types.RecomputeJob) error
}

// Registry maps job types to handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.Type()] = h
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}

// Worker polls the job table, claims runnable jobs one at a time and
// dispatches them to the registered handlers. Several workers may run against
// the same table; claiming skips locked rows.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	jobRepo  repos.RecomputeJobRepo
	registry *Registry
	poll     time.Duration
	policy   repos.RunnablePolicy
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, jobRepo repos.RecomputeJobRepo, registry *Registry) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		jobRepo:  jobRepo,
		registry: registry,
		poll:     DefaultPollInterval,
		policy: repos.RunnablePolicy{
			MaxAttempts:  DefaultMaxAttempts,
			RetryDelay:   DefaultRetryDelay,
			StaleRunning: DefaultStaleRunning,
		},
	}
}

// Start blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Job worker started", "poll_interval", w.poll)
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Job worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and runs jobs until the queue is empty or ctx is cancelled.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.jobRepo.ClaimNextRunnable(ctx, nil, w.policy)
		if err != nil {
			w.log.Error("Job claim failed", "error", err)
			return
		}
		if job == nil {
			return
		}
		w.runOne(ctx, job)
	}
}

func (w *Worker) runOne(ctx context.Context, job *types.RecomputeJob) {
	handler, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Error("No handler for job type", "job_id", job.ID, "job_type", job.JobType)
		w.finish(ctx, job, fmt.Errorf("no handler registered for %q", job.JobType))
		return
	}

	err := w.runSafely(ctx, handler, job)
	w.finish(ctx, job, err)
}

// runSafely converts a handler panic into an error so one bad job cannot
// take the worker down.
func (w *Worker) runSafely(ctx context.Context, handler Handler, job *types.RecomputeJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Run(ctx, job)
}

func (w *Worker) finish(ctx context.Context, job *types.RecomputeJob, runErr error) {
	now := time.Now().UTC()
	if runErr == nil {
		updates := map[string]any{
			"status":      types.JobStatusDone,
			"last_error":  "",
			"finished_at": now,
			"updated_at":  now,
		}
		if err := w.jobRepo.UpdateFields(ctx, nil, job.ID, updates); err != nil {
			w.log.Error("Job completion update failed", "job_id", job.ID, "error", err)
		}
		return
	}

	status := types.JobStatusPending
	if job.Attempts >= w.policy.MaxAttempts {
		status = types.JobStatusFailed
	}
	updates := map[string]any{
		"status":     status,
		"last_error": runErr.Error(),
		"run_after":  now.Add(w.policy.RetryDelay),
		"updated_at": now,
	}
	if status == types.JobStatusFailed {
		updates["finished_at"] = now
		w.log.Error("Job failed permanently", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", runErr)
	} else {
		w.log.Warn("Job failed, will retry", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", runErr)
	}
	if err := w.jobRepo.UpdateFields(ctx, nil, job.ID, updates); err != nil {
		w.log.Error("Job failure update failed", "job_id", job.ID, "error", err)
	}
}

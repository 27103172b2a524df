package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
	"github.com/skillforge/skillforge-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

type memoryJobRepo struct {
	mu   sync.Mutex
	jobs []*types.RecomputeJob
}

func (f *memoryJobRepo) Enqueue(_ context.Context, _ *gorm.DB, job *types.RecomputeJob) (*types.RecomputeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.Status == "" {
		job.Status = types.JobStatusPending
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = time.Now().UTC()
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func (f *memoryJobRepo) ExistsPending(_ context.Context, _ *gorm.DB, learnerID uuid.UUID, jobType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.LearnerID == learnerID && job.JobType == jobType && job.Status == types.JobStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *memoryJobRepo) ClaimNextRunnable(_ context.Context, _ *gorm.DB, policy repos.RunnablePolicy) (*types.RecomputeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, job := range f.jobs {
		if job.Status == types.JobStatusPending && !job.RunAfter.After(now) && job.Attempts < policy.MaxAttempts {
			job.Status = types.JobStatusRunning
			job.Attempts++
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *memoryJobRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ID != id {
			continue
		}
		if status, ok := updates["status"].(string); ok {
			job.Status = status
		}
		if lastErr, ok := updates["last_error"].(string); ok {
			job.LastError = lastErr
		}
		if runAfter, ok := updates["run_after"].(time.Time); ok {
			job.RunAfter = runAfter
		}
		return nil
	}
	return nil
}

func (f *memoryJobRepo) get(id uuid.UUID) *types.RecomputeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

type stubHandler struct {
	jobType string
	run     func(*types.RecomputeJob) error
	calls   int
}

func (h *stubHandler) Type() string { return h.jobType }

func (h *stubHandler) Run(_ context.Context, job *types.RecomputeJob) error {
	h.calls++
	if h.run == nil {
		return nil
	}
	return h.run(job)
}

func newWorkerFixture(t *testing.T, handler Handler) (*Worker, *memoryJobRepo) {
	t.Helper()
	repo := &memoryJobRepo{}
	registry := NewRegistry()
	registry.Register(handler)
	return NewWorker(nil, testLogger(t), repo, registry), repo
}

func enqueue(t *testing.T, repo *memoryJobRepo, jobType string) *types.RecomputeJob {
	t.Helper()
	job := &types.RecomputeJob{ID: uuid.New(), LearnerID: uuid.New(), JobType: jobType}
	if _, err := repo.Enqueue(context.Background(), nil, job); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return job
}

func TestWorkerRunsClaimedJob(t *testing.T) {
	handler := &stubHandler{jobType: types.JobTypeRecomputeRecommendations}
	worker, repo := newWorkerFixture(t, handler)
	job := enqueue(t, repo, types.JobTypeRecomputeRecommendations)

	worker.drain(context.Background())

	if handler.calls != 1 {
		t.Fatalf("expected 1 handler call, got %d", handler.calls)
	}
	if got := repo.get(job.ID); got.Status != types.JobStatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
}

func TestWorkerRetriesFailedJob(t *testing.T) {
	handler := &stubHandler{
		jobType: types.JobTypeRecomputeRecommendations,
		run:     func(*types.RecomputeJob) error { return errors.New("transient") },
	}
	worker, repo := newWorkerFixture(t, handler)
	job := enqueue(t, repo, types.JobTypeRecomputeRecommendations)

	worker.drain(context.Background())

	got := repo.get(job.ID)
	if got.Status != types.JobStatusPending {
		t.Fatalf("expected pending for retry, got %s", got.Status)
	}
	if got.LastError != "transient" {
		t.Errorf("expected recorded error, got %q", got.LastError)
	}
	if !got.RunAfter.After(time.Now().UTC()) {
		t.Error("retry must be delayed")
	}
}

func TestWorkerFailsJobAfterMaxAttempts(t *testing.T) {
	handler := &stubHandler{
		jobType: types.JobTypeRecomputeRecommendations,
		run:     func(*types.RecomputeJob) error { return errors.New("persistent") },
	}
	worker, repo := newWorkerFixture(t, handler)
	job := enqueue(t, repo, types.JobTypeRecomputeRecommendations)
	job.Attempts = DefaultMaxAttempts - 1

	worker.drain(context.Background())

	if got := repo.get(job.ID); got.Status != types.JobStatusFailed {
		t.Fatalf("expected failed after max attempts, got %s", got.Status)
	}
}

func TestWorkerRecoversFromHandlerPanic(t *testing.T) {
	handler := &stubHandler{
		jobType: types.JobTypeRecomputeRecommendations,
		run:     func(*types.RecomputeJob) error { panic("boom") },
	}
	worker, repo := newWorkerFixture(t, handler)
	job := enqueue(t, repo, types.JobTypeRecomputeRecommendations)

	worker.drain(context.Background())

	got := repo.get(job.ID)
	if got.Status != types.JobStatusPending {
		t.Fatalf("expected pending after panic, got %s", got.Status)
	}
	if got.LastError == "" {
		t.Error("panic must be recorded as the job error")
	}
}

func TestWorkerMarksUnknownJobType(t *testing.T) {
	handler := &stubHandler{jobType: types.JobTypeRecomputeRecommendations}
	worker, repo := newWorkerFixture(t, handler)
	job := enqueue(t, repo, "unknown_type")

	worker.drain(context.Background())

	got := repo.get(job.ID)
	if got.Status != types.JobStatusPending && got.Status != types.JobStatusFailed {
		t.Fatalf("unknown job type must not stay running, got %s", got.Status)
	}
	if handler.calls != 0 {
		t.Error("handler must not run for a different job type")
	}
}

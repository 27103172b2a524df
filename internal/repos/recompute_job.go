package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

type RunnablePolicy struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
}

type RecomputeJobRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, job *types.RecomputeJob) (*types.RecomputeJob, error)
	// ExistsPending reports whether a runnable job of the same type is
	// already queued for the learner, so event bursts don't pile up jobs.
	ExistsPending(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, jobType string) (bool, error)
	// ClaimNextRunnable picks one runnable job and marks it running
	// (SELECT ... FOR UPDATE SKIP LOCKED).
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, policy RunnablePolicy) (*types.RecomputeJob, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
}

type recomputeJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecomputeJobRepo(db *gorm.DB, baseLog *logger.Logger) RecomputeJobRepo {
	return &recomputeJobRepo{db: db, log: baseLog.With("repo", "RecomputeJobRepo")}
}

func (r *recomputeJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, job *types.RecomputeJob) (*types.RecomputeJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if job == nil {
		return nil, nil
	}
	if job.Status == "" {
		job.Status = types.JobStatusPending
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = time.Now().UTC()
	}
	if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *recomputeJobRepo) ExistsPending(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, jobType string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.RecomputeJob{}).
		Where("learner_id = ? AND job_type = ? AND status = ?", learnerID, jobType, types.JobStatusPending).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *recomputeJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, policy RunnablePolicy) (*types.RecomputeJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-policy.StaleRunning)

	var claimed *types.RecomputeJob
	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		var job types.RecomputeJob
		err := inner.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(
				"(status = ? AND run_after <= ? AND attempts < ?) OR (status = ? AND updated_at < ?)",
				types.JobStatusPending, now, policy.MaxAttempts,
				types.JobStatusRunning, staleBefore,
			).
			Order("run_after ASC").
			First(&job).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"status":     types.JobStatusRunning,
			"attempts":   job.Attempts + 1,
			"started_at": now,
			"updated_at": now,
		}
		if err := inner.Model(&types.RecomputeJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
			return err
		}
		job.Status = types.JobStatusRunning
		job.Attempts++
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *recomputeJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.RecomputeJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

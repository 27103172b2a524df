package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

type PathRepo interface {
	// ReplaceForLearnerCourse swaps the whole ordered sequence for the
	// (learner, course) pair in one transaction.
	ReplaceForLearnerCourse(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID, entries []*types.PathEntry) error
	GetByLearnerCourse(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID) ([]*types.PathEntry, error)
}

type pathRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPathRepo(db *gorm.DB, baseLog *logger.Logger) PathRepo {
	return &pathRepo{db: db, log: baseLog.With("repo", "PathRepo")}
}

func (r *pathRepo) ReplaceForLearnerCourse(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID, entries []*types.PathEntry) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.
			Where("learner_id = ? AND course_id = ?", learnerID, courseID).
			Delete(&types.PathEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return inner.Create(&entries).Error
	})
}

func (r *pathRepo) GetByLearnerCourse(ctx context.Context, tx *gorm.DB, learnerID, courseID uuid.UUID) ([]*types.PathEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PathEntry
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

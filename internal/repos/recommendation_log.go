package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/skillforge/skillforge-backend/internal/pkg/errors"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

type RecommendationLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.RecommendationLog) ([]*types.RecommendationLog, error)
	GetRecentByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, limit int) ([]*types.RecommendationLog, error)
	MarkAccepted(ctx context.Context, tx *gorm.DB, id uuid.UUID, accepted bool) error
}

type recommendationLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationLogRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationLogRepo {
	return &recommendationLogRepo{db: db, log: baseLog.With("repo", "RecommendationLogRepo")}
}

func (r *recommendationLogRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.RecommendationLog) ([]*types.RecommendationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.RecommendationLog{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *recommendationLogRepo) GetRecentByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, limit int) ([]*types.RecommendationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Order("shown_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []*types.RecommendationLog
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *recommendationLogRepo) MarkAccepted(ctx context.Context, tx *gorm.DB, id uuid.UUID, accepted bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.RecommendationLog{}).
		Where("id = ?", id).
		Update("accepted", accepted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

type LearnerRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Learner, error)
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Learner) ([]*types.Learner, error)
}

type learnerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearnerRepo(db *gorm.DB, baseLog *logger.Logger) LearnerRepo {
	return &learnerRepo{db: db, log: baseLog.With("repo", "LearnerRepo")}
}

func (r *learnerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Learner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.Learner
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *learnerRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Learner) ([]*types.Learner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.Learner{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

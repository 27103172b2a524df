package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

type RuleRepo interface {
	// GetActive returns active rules ordered by descending priority.
	GetActive(ctx context.Context, tx *gorm.DB) ([]*types.PersonalizationRule, error)
	Create(ctx context.Context, tx *gorm.DB, rows []*types.PersonalizationRule) ([]*types.PersonalizationRule, error)
}

type ruleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuleRepo(db *gorm.DB, baseLog *logger.Logger) RuleRepo {
	return &ruleRepo{db: db, log: baseLog.With("repo", "RuleRepo")}
}

func (r *ruleRepo) GetActive(ctx context.Context, tx *gorm.DB) ([]*types.PersonalizationRule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.PersonalizationRule
	if err := transaction.WithContext(ctx).
		Where("active = ?", true).
		Order("priority DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ruleRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.PersonalizationRule) ([]*types.PersonalizationRule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.PersonalizationRule{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

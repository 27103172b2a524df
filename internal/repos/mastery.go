package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

type MasteryRepo interface {
	GetByLearnerAndSkill(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, skillID string) (*types.MasterySnapshot, error)
	// GetByLearnerAndSkillForUpdate reads the row with FOR UPDATE, holding
	// the lock until the surrounding transaction ends. Read-modify-write
	// callers must use this variant so concurrent writers serialize.
	GetByLearnerAndSkillForUpdate(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, skillID string) (*types.MasterySnapshot, error)
	GetByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.MasterySnapshot, error)
	GetByLearnerAndSkills(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, skillIDs []string) ([]*types.MasterySnapshot, error)
	// CreateIfAbsent inserts the row unless one already exists for its
	// (learner_id, skill_id). FOR UPDATE cannot lock a missing row, so
	// writers insert a baseline first and then take the locking read.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.MasterySnapshot) error
	// Upsert writes on the (learner_id, skill_id) unique index. It prevents
	// duplicate rows, not read-modify-write races; those need the locking
	// read above.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.MasterySnapshot) error
	GetLearnerIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error)
}

type masteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMasteryRepo(db *gorm.DB, baseLog *logger.Logger) MasteryRepo {
	return &masteryRepo{db: db, log: baseLog.With("repo", "MasteryRepo")}
}

func (r *masteryRepo) GetByLearnerAndSkill(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, skillID string) (*types.MasterySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.MasterySnapshot
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND skill_id = ?", learnerID, skillID).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *masteryRepo) GetByLearnerAndSkillForUpdate(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, skillID string) (*types.MasterySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.MasterySnapshot
	err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("learner_id = ? AND skill_id = ?", learnerID, skillID).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *masteryRepo) GetByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.MasterySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.MasterySnapshot
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *masteryRepo) GetByLearnerAndSkills(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, skillIDs []string) ([]*types.MasterySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.MasterySnapshot
	if len(skillIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND skill_id IN ?", learnerID, skillIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *masteryRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.MasterySnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "skill_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *masteryRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.MasterySnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "learner_id"}, {Name: "skill_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mastery", "half_life_days", "practice_count", "correct_count", "last_update", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *masteryRepo) GetLearnerIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.MasterySnapshot{}).
		Distinct("learner_id").
		Pluck("learner_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

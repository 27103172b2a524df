package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

// CatalogRepo reads the skill catalog: prerequisite edges and lesson-skill
// weights.
type CatalogRepo interface {
	PrerequisitesOf(ctx context.Context, tx *gorm.DB, skillID string) ([]*types.SkillPrerequisite, error)
	SkillsOfLesson(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]*types.LessonSkill, error)
	SkillsOfLessons(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) (map[uuid.UUID][]*types.LessonSkill, error)
	CreateSkills(ctx context.Context, tx *gorm.DB, rows []*types.Skill) error
	CreatePrerequisites(ctx context.Context, tx *gorm.DB, rows []*types.SkillPrerequisite) error
	CreateLessonSkills(ctx context.Context, tx *gorm.DB, rows []*types.LessonSkill) error
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return &catalogRepo{db: db, log: baseLog.With("repo", "CatalogRepo")}
}

func (r *catalogRepo) PrerequisitesOf(ctx context.Context, tx *gorm.DB, skillID string) ([]*types.SkillPrerequisite, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SkillPrerequisite
	if err := transaction.WithContext(ctx).
		Where("skill_id = ?", skillID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *catalogRepo) SkillsOfLesson(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]*types.LessonSkill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LessonSkill
	if err := transaction.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *catalogRepo) SkillsOfLessons(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) (map[uuid.UUID][]*types.LessonSkill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	out := make(map[uuid.UUID][]*types.LessonSkill, len(lessonIDs))
	if len(lessonIDs) == 0 {
		return out, nil
	}

	var rows []*types.LessonSkill
	if err := transaction.WithContext(ctx).
		Where("lesson_id IN ?", lessonIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.LessonID] = append(out[row.LessonID], row)
	}
	return out, nil
}

func (r *catalogRepo) CreateSkills(ctx context.Context, tx *gorm.DB, rows []*types.Skill) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *catalogRepo) CreatePrerequisites(ctx context.Context, tx *gorm.DB, rows []*types.SkillPrerequisite) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	// A skill cannot be its own prerequisite; drop such edges rather than
	// persisting an unsatisfiable gate.
	kept := make([]*types.SkillPrerequisite, 0, len(rows))
	for _, row := range rows {
		if row.SkillID == row.PrerequisiteSkillID {
			r.log.Warn("Skipping self-prerequisite edge", "skill_id", row.SkillID)
			continue
		}
		kept = append(kept, row)
	}
	if len(kept) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&kept).Error
}

func (r *catalogRepo) CreateLessonSkills(ctx context.Context, tx *gorm.DB, rows []*types.LessonSkill) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

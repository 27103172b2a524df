package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/types"
)

type PracticeEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.PracticeEvent) ([]*types.PracticeEvent, error)
	CountByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) (int64, error)
	GetCompletedLessonIDs(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]uuid.UUID, error)
	// GetCompletedLessonIDsByLearners returns one entry per (learner, lesson)
	// completion, deduplicated, across the given peer set.
	GetCompletedLessonIDsByLearners(ctx context.Context, tx *gorm.DB, learnerIDs []uuid.UUID) ([]uuid.UUID, error)
	CountCompletionsByLesson(ctx context.Context, tx *gorm.DB) (map[uuid.UUID]int64, error)
}

type practiceEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPracticeEventRepo(db *gorm.DB, baseLog *logger.Logger) PracticeEventRepo {
	return &practiceEventRepo{db: db, log: baseLog.With("repo", "PracticeEventRepo")}
}

func (r *practiceEventRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.PracticeEvent) ([]*types.PracticeEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.PracticeEvent{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *practiceEventRepo) CountByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.PracticeEvent{}).
		Where("learner_id = ?", learnerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *practiceEventRepo) GetCompletedLessonIDs(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.PracticeEvent{}).
		Where("learner_id = ? AND type = ? AND lesson_id IS NOT NULL", learnerID, types.EventTypeComplete).
		Distinct("lesson_id").
		Pluck("lesson_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *practiceEventRepo) GetCompletedLessonIDsByLearners(ctx context.Context, tx *gorm.DB, learnerIDs []uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if len(learnerIDs) == 0 {
		return ids, nil
	}

	rows, err := transaction.WithContext(ctx).
		Model(&types.PracticeEvent{}).
		Select("DISTINCT learner_id, lesson_id").
		Where("learner_id IN ? AND type = ? AND lesson_id IS NOT NULL", learnerIDs, types.EventTypeComplete).
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var learnerID, lessonID uuid.UUID
		if err := rows.Scan(&learnerID, &lessonID); err != nil {
			return nil, err
		}
		ids = append(ids, lessonID)
	}
	return ids, rows.Err()
}

func (r *practiceEventRepo) CountCompletionsByLesson(ctx context.Context, tx *gorm.DB) (map[uuid.UUID]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	rows, err := transaction.WithContext(ctx).
		Model(&types.PracticeEvent{}).
		Select("lesson_id, COUNT(DISTINCT learner_id) AS completions").
		Where("type = ? AND lesson_id IS NOT NULL", types.EventTypeComplete).
		Group("lesson_id").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var lessonID uuid.UUID
		var completions int64
		if err := rows.Scan(&lessonID, &completions); err != nil {
			return nil, err
		}
		counts[lessonID] = completions
	}
	return counts, rows.Err()
}

package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/engine"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
	"github.com/skillforge/skillforge-backend/internal/types"
)

// ContentService scores lessons by how much they exercise a learner's
// current weak skills, with a penalty when the lesson's primary skill has
// unmet prerequisites.
type ContentService interface {
	WeakSkills(ctx context.Context, learnerID uuid.UUID) ([]engine.WeakSkill, error)
	ScoreLessons(ctx context.Context, learnerID uuid.UUID, lessons []*types.Lesson) ([]engine.ScoredLesson, error)
}

type contentService struct {
	db          *gorm.DB
	log         *logger.Logger
	catalogRepo repos.CatalogRepo
	mastery     MasteryService
	readiness   ReadinessService
	tuning      engine.Tuning
}

func NewContentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	catalogRepo repos.CatalogRepo,
	mastery MasteryService,
	readiness ReadinessService,
	tuning engine.Tuning,
) ContentService {
	return &contentService{
		db:          db,
		log:         baseLog.With("service", "ContentService"),
		catalogRepo: catalogRepo,
		mastery:     mastery,
		readiness:   readiness,
		tuning:      tuning,
	}
}

func (s *contentService) WeakSkills(ctx context.Context, learnerID uuid.UUID) ([]engine.WeakSkill, error) {
	vector, err := s.mastery.MasteryVector(ctx, learnerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return engine.WeakSkills(vector, s.tuning.WeakThreshold, s.tuning.WeakCap), nil
}

func (s *contentService) ScoreLessons(ctx context.Context, learnerID uuid.UUID, lessons []*types.Lesson) ([]engine.ScoredLesson, error) {
	weak, err := s.WeakSkills(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if len(weak) == 0 {
		return nil, nil
	}
	rank := make(map[string]int, len(weak))
	for i, w := range weak {
		rank[w.SkillID] = i
	}

	lessonIDs := make([]uuid.UUID, 0, len(lessons))
	for _, lesson := range lessons {
		lessonIDs = append(lessonIDs, lesson.ID)
	}
	bySkill, err := s.catalogRepo.SkillsOfLessons(ctx, nil, lessonIDs)
	if err != nil {
		return nil, err
	}

	out := make([]engine.ScoredLesson, 0, len(lessons))
	for _, lesson := range lessons {
		var raw float64
		var matched []string
		for _, ls := range bySkill[lesson.ID] {
			r, ok := rank[ls.SkillID]
			if !ok {
				continue
			}
			raw += ls.Weight * engine.RankWeight(r, len(weak))
			matched = append(matched, ls.SkillID)
		}
		// Lessons covering none of the weak skills don't compete.
		if raw == 0 {
			continue
		}

		if lesson.PrimarySkillID != "" {
			ready, _, err := s.readiness.CheckReadiness(ctx, learnerID, lesson.PrimarySkillID)
			if err != nil {
				s.log.Warn("Readiness check failed, scoring without penalty", "lesson_id", lesson.ID, "error", err)
			} else if !ready {
				raw *= s.tuning.ReadinessPenalty
			}
		}

		out = append(out, engine.ScoredLesson{
			LessonID: lesson.ID,
			Score:    engine.Clamp(raw/s.tuning.ContentDivisor, 0, 1),
			Reason:   "targets weak skills: " + strings.Join(headStrings(matched, 3), ", "),
		})
	}
	sortScored(out)
	return out, nil
}

func headStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

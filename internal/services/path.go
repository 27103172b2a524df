package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/engine"
	apperrors "github.com/skillforge/skillforge-backend/internal/pkg/errors"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
	"github.com/skillforge/skillforge-backend/internal/types"
)

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"

	// Average-mastery bands that pick the target difficulty.
	beginnerBand     = 0.3
	intermediateBand = 0.7

	// Bonus for lessons at exactly the target difficulty, and for lessons
	// one level away.
	difficultyExactBonus    = 0.3
	difficultyAdjacentBonus = 0.1
)

var difficultyOrder = map[string]int{
	DifficultyBeginner:     0,
	DifficultyIntermediate: 1,
	DifficultyAdvanced:     2,
}

// PathService orders a course's lessons into a personalized sequence.
// Regeneration replaces the stored path wholesale; positions are a dense
// 1..N by descending score.
type PathService interface {
	GeneratePath(ctx context.Context, learnerID, courseID uuid.UUID) ([]*types.PathEntry, error)
	GetPath(ctx context.Context, learnerID, courseID uuid.UUID) ([]*types.PathEntry, error)
}

type pathService struct {
	db          *gorm.DB
	log         *logger.Logger
	learnerRepo repos.LearnerRepo
	courseRepo  repos.CourseRepo
	lessonRepo  repos.LessonRepo
	catalogRepo repos.CatalogRepo
	pathRepo    repos.PathRepo
	mastery     MasteryService
	readiness   ReadinessService
	tuning      engine.Tuning
}

func NewPathService(
	db *gorm.DB,
	baseLog *logger.Logger,
	learnerRepo repos.LearnerRepo,
	courseRepo repos.CourseRepo,
	lessonRepo repos.LessonRepo,
	catalogRepo repos.CatalogRepo,
	pathRepo repos.PathRepo,
	mastery MasteryService,
	readiness ReadinessService,
	tuning engine.Tuning,
) PathService {
	return &pathService{
		db:          db,
		log:         baseLog.With("service", "PathService"),
		learnerRepo: learnerRepo,
		courseRepo:  courseRepo,
		lessonRepo:  lessonRepo,
		catalogRepo: catalogRepo,
		pathRepo:    pathRepo,
		mastery:     mastery,
		readiness:   readiness,
		tuning:      tuning,
	}
}

func (s *pathService) GeneratePath(ctx context.Context, learnerID, courseID uuid.UUID) ([]*types.PathEntry, error) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("%w: course %s", apperrors.ErrNotFound, courseID)
	}
	learner, err := s.learnerRepo.GetByID(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	if learner == nil {
		return nil, fmt.Errorf("%w: learner %s", apperrors.ErrNotFound, learnerID)
	}

	lessons, err := s.lessonRepo.GetByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	vector, err := s.mastery.MasteryVector(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}
	weak := engine.WeakSkills(vector, s.tuning.WeakThreshold, s.tuning.WeakCap)
	rank := make(map[string]int, len(weak))
	for i, w := range weak {
		rank[w.SkillID] = i
	}
	target := targetDifficulty(averageMastery(vector))

	lessonIDs := make([]uuid.UUID, 0, len(lessons))
	for _, lesson := range lessons {
		lessonIDs = append(lessonIDs, lesson.ID)
	}
	bySkill, err := s.catalogRepo.SkillsOfLessons(ctx, nil, lessonIDs)
	if err != nil {
		return nil, err
	}

	type scoredEntry struct {
		lesson *types.Lesson
		score  float64
	}
	readyBySkill := make(map[string]bool)
	scored := make([]scoredEntry, 0, len(lessons))
	for _, lesson := range lessons {
		skills := bySkill[lesson.ID]
		// Unmapped lessons carry no signal and are left off the path.
		if len(skills) == 0 {
			continue
		}

		var score float64
		for _, ls := range skills {
			if r, ok := rank[ls.SkillID]; ok {
				score += ls.Weight * engine.RankWeight(r, len(weak))
			}
		}

		if learner.FocusArea != "" {
			for _, ls := range skills {
				if strings.Contains(ls.SkillID, learner.FocusArea) {
					score += s.tuning.FocusBonus
					break
				}
			}
		}
		score += difficultyBonus(lesson.Difficulty, target)

		allStrong := true
		for _, ls := range skills {
			if vector[ls.SkillID] < s.tuning.StrongThreshold {
				allStrong = false
				break
			}
		}
		if allStrong {
			score *= s.tuning.MasteredPenalty
		}

		if lesson.PrimarySkillID != "" {
			ready, ok := readyBySkill[lesson.PrimarySkillID]
			if !ok {
				checked, _, rerr := s.readiness.CheckReadiness(ctx, learnerID, lesson.PrimarySkillID)
				if rerr != nil {
					s.log.Warn("Readiness check failed, sequencing without penalty", "skill_id", lesson.PrimarySkillID, "error", rerr)
					checked = true
				}
				ready = checked
				readyBySkill[lesson.PrimarySkillID] = ready
			}
			if !ready {
				score *= s.tuning.PathReadinessPenalty
			}
		}

		scored = append(scored, scoredEntry{lesson: lesson, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].lesson.Index < scored[j].lesson.Index
	})

	entries := make([]*types.PathEntry, 0, len(scored))
	for i, item := range scored {
		entries = append(entries, &types.PathEntry{
			ID:            uuid.New(),
			LearnerID:     learnerID,
			CourseID:      courseID,
			LessonID:      item.lesson.ID,
			Score:         item.score,
			Position:      i + 1,
			Difficulty:    item.lesson.Difficulty,
			EstimatedTime: item.lesson.EstimatedTime,
		})
	}

	if err := s.pathRepo.ReplaceForLearnerCourse(ctx, nil, learnerID, courseID, entries); err != nil {
		return nil, err
	}
	s.log.Info("Generated learning path", "learner_id", learnerID, "course_id", courseID, "entries", len(entries))
	return entries, nil
}

func (s *pathService) GetPath(ctx context.Context, learnerID, courseID uuid.UUID) ([]*types.PathEntry, error) {
	return s.pathRepo.GetByLearnerCourse(ctx, nil, learnerID, courseID)
}

func averageMastery(vector map[string]float64) float64 {
	if len(vector) == 0 {
		return 0
	}
	var sum float64
	for _, m := range vector {
		sum += m
	}
	return sum / float64(len(vector))
}

func targetDifficulty(average float64) string {
	switch {
	case average < beginnerBand:
		return DifficultyBeginner
	case average < intermediateBand:
		return DifficultyIntermediate
	default:
		return DifficultyAdvanced
	}
}

func difficultyBonus(difficulty, target string) float64 {
	have, ok := difficultyOrder[difficulty]
	if !ok {
		return 0
	}
	want := difficultyOrder[target]
	switch distance := have - want; {
	case distance == 0:
		return difficultyExactBonus
	case distance == 1 || distance == -1:
		return difficultyAdjacentBonus
	default:
		return 0
	}
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/cache"
	"github.com/skillforge/skillforge-backend/internal/engine"
	apperrors "github.com/skillforge/skillforge-backend/internal/pkg/errors"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
	"github.com/skillforge/skillforge-backend/internal/types"
)

const (
	DefaultRecommendationLimit = 10
	// candidateLimit bounds the lesson pool considered per request.
	candidateLimit = 500
	// nextInSequenceScore ranks the first uncompleted lesson of a started
	// course ahead of popularity entries.
	nextInSequenceScore = 0.8
	// boostedSkillScore ranks lessons a fired boost_skill rule targets.
	boostedSkillScore = 0.9
)

// Recommendation is one returned entry with its explanation and the signals
// that produced it.
type Recommendation struct {
	LessonID uuid.UUID `json:"lesson_id"`
	Score    float64   `json:"score"`
	Reason   string    `json:"reason"`
	Sources  []string  `json:"sources"`
}

// RecommendationService blends the collaborative, content-based and
// rule-based signals into a ranked lesson list. Every served list is cached
// per (learner, algorithm) and persisted to the audit log.
type RecommendationService interface {
	Recommend(ctx context.Context, learnerID uuid.UUID, limit int, excludeCompleted bool, algorithm string) ([]Recommendation, error)
	MarkAccepted(ctx context.Context, logID uuid.UUID, accepted bool) error
	Invalidate(ctx context.Context, learnerID uuid.UUID)
}

type recommendationService struct {
	db         *gorm.DB
	log        *logger.Logger
	lessonRepo repos.LessonRepo
	eventRepo  repos.PracticeEventRepo
	recLogRepo repos.RecommendationLogRepo
	similarity SimilarityService
	content    ContentService
	rules      RuleService
	cache      cache.Cache
	tuning     engine.Tuning
}

func NewRecommendationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	lessonRepo repos.LessonRepo,
	eventRepo repos.PracticeEventRepo,
	recLogRepo repos.RecommendationLogRepo,
	similarity SimilarityService,
	content ContentService,
	rules RuleService,
	c cache.Cache,
	tuning engine.Tuning,
) RecommendationService {
	return &recommendationService{
		db:         db,
		log:        baseLog.With("service", "RecommendationService"),
		lessonRepo: lessonRepo,
		eventRepo:  eventRepo,
		recLogRepo: recLogRepo,
		similarity: similarity,
		content:    content,
		rules:      rules,
		cache:      c,
		tuning:     tuning,
	}
}

func (s *recommendationService) Recommend(ctx context.Context, learnerID uuid.UUID, limit int, excludeCompleted bool, algorithm string) ([]Recommendation, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	switch algorithm {
	case "":
		algorithm = AlgorithmHybrid
	case AlgorithmHybrid, AlgorithmCollaborative, AlgorithmContentBased, AlgorithmRuleBased:
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", apperrors.ErrInvalidInput, algorithm)
	}

	key := recommendationCacheKey(learnerID, algorithm)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("Recommendation cache read failed", "key", key, "error", err)
	} else if ok {
		var cached []Recommendation
		if err := json.Unmarshal(raw, &cached); err == nil {
			if len(cached) > limit {
				cached = cached[:limit]
			}
			return cached, nil
		}
		s.log.Warn("Discarding undecodable recommendation cache entry", "key", key)
	}

	candidates, err := s.lessonRepo.GetAll(ctx, nil, candidateLimit)
	if err != nil {
		return nil, err
	}
	completedIDs, err := s.eventRepo.GetCompletedLessonIDs(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	completed := make(map[uuid.UUID]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	pool := candidates
	if excludeCompleted {
		pool = make([]*types.Lesson, 0, len(candidates))
		for _, lesson := range candidates {
			if !completed[lesson.ID] {
				pool = append(pool, lesson)
			}
		}
	}

	exclude := map[uuid.UUID]bool{}
	if excludeCompleted {
		exclude = completed
	}

	// Each signal degrades independently: a failed signal logs and
	// contributes nothing instead of failing the request.
	var collaborative, contentBased, ruleBased []engine.ScoredLesson
	weights := engine.FusionWeights{}
	switch algorithm {
	case AlgorithmHybrid:
		weights = s.tuning.Fusion
		collaborative = s.collaborativeSignal(ctx, learnerID, exclude)
		contentBased = s.contentSignal(ctx, learnerID, pool)
		ruleBased = s.ruleSignal(ctx, learnerID, candidates, completed, exclude)
	case AlgorithmCollaborative:
		weights.Collaborative = 1
		collaborative = s.collaborativeSignal(ctx, learnerID, exclude)
	case AlgorithmContentBased:
		weights.Content = 1
		contentBased = s.contentSignal(ctx, learnerID, pool)
	case AlgorithmRuleBased:
		weights.Rule = 1
		ruleBased = s.ruleSignal(ctx, learnerID, candidates, completed, exclude)
	}

	fused := engine.Fuse(weights, collaborative, contentBased, ruleBased)

	ranked := make([]Recommendation, 0, len(fused))
	for _, item := range fused {
		ranked = append(ranked, Recommendation{
			LessonID: item.LessonID,
			Score:    item.Score,
			Reason:   item.Reason,
			Sources:  item.Sources,
		})
	}

	served := ranked
	if len(served) > limit {
		served = served[:limit]
	}

	now := time.Now().UTC()
	auditRows := make([]*types.RecommendationLog, 0, len(served))
	for _, rec := range served {
		auditRows = append(auditRows, &types.RecommendationLog{
			ID:        uuid.New(),
			LearnerID: learnerID,
			LessonID:  rec.LessonID,
			Score:     rec.Score,
			Reason:    rec.Reason,
			Sources:   strings.Join(rec.Sources, ","),
			Algorithm: algorithm,
			ShownAt:   now,
		})
	}
	if _, err := s.recLogRepo.Create(ctx, nil, auditRows); err != nil {
		s.log.Warn("Recommendation audit write failed", "learner_id", learnerID, "error", err)
	}

	// Cache the untruncated ranking so a later call with a larger limit
	// within the TTL is not stuck with the first caller's cut-off.
	if payload, err := json.Marshal(ranked); err == nil {
		if err := s.cache.Set(ctx, key, payload, RecommendationCacheTTL); err != nil {
			s.log.Warn("Recommendation cache write failed", "key", key, "error", err)
		}
	}
	return served, nil
}

func (s *recommendationService) collaborativeSignal(ctx context.Context, learnerID uuid.UUID, exclude map[uuid.UUID]bool) []engine.ScoredLesson {
	scores, err := s.similarity.CollaborativeScores(ctx, learnerID, exclude)
	if err != nil {
		s.log.Warn("Collaborative signal unavailable", "learner_id", learnerID, "error", err)
		return nil
	}
	return scores
}

func (s *recommendationService) contentSignal(ctx context.Context, learnerID uuid.UUID, pool []*types.Lesson) []engine.ScoredLesson {
	scores, err := s.content.ScoreLessons(ctx, learnerID, pool)
	if err != nil {
		s.log.Warn("Content signal unavailable", "learner_id", learnerID, "error", err)
		return nil
	}
	return scores
}

func (s *recommendationService) ruleSignal(ctx context.Context, learnerID uuid.UUID, candidates []*types.Lesson, completed, exclude map[uuid.UUID]bool) []engine.ScoredLesson {
	scores, err := s.ruleScores(ctx, learnerID, candidates, completed, exclude)
	if err != nil {
		s.log.Warn("Rule signal unavailable", "learner_id", learnerID, "error", err)
		return nil
	}
	return scores
}

// ruleScores builds the rule-based signal: the next uncompleted lesson of
// every course the learner started, popular lessons for beginners or when a
// fired rule requests them, and lessons teaching a boosted skill. A lesson
// hit by several heuristics keeps its highest score. It works over the full
// candidate list so course progress stays visible, and filters through
// exclude at the end.
func (s *recommendationService) ruleScores(ctx context.Context, learnerID uuid.UUID, candidates []*types.Lesson, completed, exclude map[uuid.UUID]bool) ([]engine.ScoredLesson, error) {
	fired, err := s.rules.Evaluate(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	best := make(map[uuid.UUID]engine.ScoredLesson)
	upsert := func(id uuid.UUID, score float64, reason string) {
		if exclude[id] {
			return
		}
		if current, ok := best[id]; ok && current.Score >= score {
			return
		}
		best[id] = engine.ScoredLesson{LessonID: id, Score: score, Reason: reason}
	}

	byCourse := make(map[uuid.UUID][]*types.Lesson)
	for _, lesson := range candidates {
		byCourse[lesson.CourseID] = append(byCourse[lesson.CourseID], lesson)
	}
	for _, lessons := range byCourse {
		sort.Slice(lessons, func(i, j int) bool { return lessons[i].Index < lessons[j].Index })
		started := false
		for _, lesson := range lessons {
			if completed[lesson.ID] {
				started = true
				break
			}
		}
		if !started {
			continue
		}
		for _, lesson := range lessons {
			if !completed[lesson.ID] {
				upsert(lesson.ID, nextInSequenceScore, "next lesson in a course you started")
				break
			}
		}
	}

	eventCount, err := s.eventRepo.CountByLearner(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	wantPopular := eventCount < int64(s.tuning.BeginnerEventThreshold)
	boosted := map[string]bool{}
	for _, rule := range fired {
		switch {
		case rule.Action == ActionRecommendPopular:
			wantPopular = true
		case strings.HasPrefix(rule.Action, ActionBoostSkillPrefix):
			boosted[strings.TrimPrefix(rule.Action, ActionBoostSkillPrefix)] = true
		}
	}

	if wantPopular {
		counts, err := s.eventRepo.CountCompletionsByLesson(ctx, nil)
		if err != nil {
			return nil, err
		}
		for _, lesson := range candidates {
			count := counts[lesson.ID]
			if count == 0 {
				continue
			}
			score := math.Min(1, float64(count)/s.tuning.PeerCompletionDivisor)
			upsert(lesson.ID, score, fmt.Sprintf("completed by %d learners", count))
		}
	}

	if len(boosted) > 0 {
		for _, lesson := range candidates {
			if lesson.PrimarySkillID != "" && boosted[lesson.PrimarySkillID] {
				upsert(lesson.ID, boostedSkillScore, "recommended review for "+lesson.PrimarySkillID)
			}
		}
	}

	out := make([]engine.ScoredLesson, 0, len(best))
	for _, item := range best {
		out = append(out, item)
	}
	sortScored(out)
	return out, nil
}

func (s *recommendationService) MarkAccepted(ctx context.Context, logID uuid.UUID, accepted bool) error {
	return s.recLogRepo.MarkAccepted(ctx, nil, logID, accepted)
}

func (s *recommendationService) Invalidate(ctx context.Context, learnerID uuid.UUID) {
	for _, key := range learnerCacheKeys(learnerID) {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("Cache invalidation failed", "key", key, "error", err)
		}
	}
}

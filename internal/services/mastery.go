package services

import (
	"context"
	"fmt"
	"math"
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

// MasteryService owns the per-learner per-skill proficiency lifecycle:
// recording practice outcomes, applying forgetting decay at read time, and
// triggering invalidation plus async recomputation after each event.
type MasteryService interface {
	RecordOutcome(ctx context.Context, learnerID uuid.UUID, skillID string, correct bool, timeSpentSeconds float64) (*types.MasterySnapshot, error)
	// CurrentMastery returns the decayed estimate as of now; 0 for skills
	// the learner has never practiced.
	CurrentMastery(ctx context.Context, learnerID uuid.UUID, skillID string, now time.Time) (float64, error)
	MasteryVector(ctx context.Context, learnerID uuid.UUID, now time.Time) (map[string]float64, error)
}

type masteryService struct {
	db          *gorm.DB
	log         *logger.Logger
	masteryRepo repos.MasteryRepo
	eventRepo   repos.PracticeEventRepo
	jobRepo     repos.RecomputeJobRepo
	cache       cache.Cache
	rule        engine.UpdateRule
	tuning      engine.Tuning
}

func NewMasteryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	masteryRepo repos.MasteryRepo,
	eventRepo repos.PracticeEventRepo,
	jobRepo repos.RecomputeJobRepo,
	c cache.Cache,
	tuning engine.Tuning,
) MasteryService {
	return &masteryService{
		db:          db,
		log:         baseLog.With("service", "MasteryService"),
		masteryRepo: masteryRepo,
		eventRepo:   eventRepo,
		jobRepo:     jobRepo,
		cache:       c,
		rule:        updateRuleFromTuning(tuning),
		tuning:      tuning,
	}
}

func updateRuleFromTuning(t engine.Tuning) engine.UpdateRule {
	switch t.UpdateRule {
	case engine.UpdateRuleEMA:
		return engine.EMA{Alpha: t.Alpha}
	default:
		return engine.BKT{Slip: t.Slip, Guess: t.Guess}
	}
}

func (s *masteryService) RecordOutcome(ctx context.Context, learnerID uuid.UUID, skillID string, correct bool, timeSpentSeconds float64) (*types.MasterySnapshot, error) {
	if skillID == "" {
		return nil, fmt.Errorf("%w: skill id is required", apperrors.ErrInvalidInput)
	}
	if timeSpentSeconds < 0 {
		return nil, fmt.Errorf("%w: time_spent must be >= 0", apperrors.ErrInvalidInput)
	}

	now := time.Now().UTC()
	var snap *types.MasterySnapshot
	var delta float64

	// The read, update and write run in one transaction with the row locked
	// so concurrent events for the same (learner, skill) serialize instead
	// of losing updates. The baseline insert first makes sure there is a
	// row to lock even for a learner's very first event on the skill.
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		baseline := &types.MasterySnapshot{
			ID:           uuid.New(),
			LearnerID:    learnerID,
			SkillID:      skillID,
			Mastery:      engine.DefaultInitialMastery,
			HalfLifeDays: engine.DefaultHalfLifeDays,
			LastUpdate:   now,
		}
		if err := s.masteryRepo.CreateIfAbsent(ctx, tx, baseline); err != nil {
			return err
		}

		var err error
		snap, err = s.masteryRepo.GetByLearnerAndSkillForUpdate(ctx, tx, learnerID, skillID)
		if err != nil {
			return err
		}
		if snap == nil {
			return fmt.Errorf("mastery snapshot missing after insert for learner %s skill %s", learnerID, skillID)
		}

		prior := engine.Decayed(snap.Mastery, snap.HalfLifeDays, now.Sub(snap.LastUpdate))
		posterior := s.rule.Update(prior, correct)
		delta = math.Abs(posterior - prior)

		snap.Mastery = posterior
		snap.HalfLifeDays = engine.AdaptHalfLife(snap.HalfLifeDays, correct, s.tuning.HalfLifeRate)
		snap.PracticeCount++
		if correct {
			snap.CorrectCount++
		}
		snap.LastUpdate = now
		snap.UpdatedAt = now

		if err := s.masteryRepo.Upsert(ctx, tx, snap); err != nil {
			return err
		}

		event := &types.PracticeEvent{
			ID:         uuid.New(),
			LearnerID:  learnerID,
			SkillID:    skillID,
			Type:       types.EventTypePractice,
			Correct:    correct,
			TimeSpent:  timeSpentSeconds,
			OccurredAt: now,
		}
		_, err = s.eventRepo.Create(ctx, tx, []*types.PracticeEvent{event})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, learnerID, delta)
	return snap, nil
}

// inTx runs fn in a database transaction when a handle is present; repo
// calls inside receive the transaction so the row lock spans the whole
// read-modify-write.
func (s *masteryService) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// invalidate drops the learner's cached artifacts on every event; the async
// recomputation is only enqueued when the mastery delta is large enough to
// shift rankings, smaller shifts recompute lazily on the next request.
// Failures here never fail the write path.
func (s *masteryService) invalidate(ctx context.Context, learnerID uuid.UUID, delta float64) {
	for _, key := range learnerCacheKeys(learnerID) {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("Cache invalidation failed", "key", key, "error", err)
		}
	}
	if delta < s.tuning.InvalidationDelta {
		return
	}

	pending, err := s.jobRepo.ExistsPending(ctx, nil, learnerID, types.JobTypeRecomputeRecommendations)
	if err != nil {
		s.log.Warn("Pending-job check failed, skipping enqueue", "learner_id", learnerID, "error", err)
		return
	}
	if pending {
		return
	}
	job := &types.RecomputeJob{
		ID:        uuid.New(),
		LearnerID: learnerID,
		JobType:   types.JobTypeRecomputeRecommendations,
	}
	if _, err := s.jobRepo.Enqueue(ctx, nil, job); err != nil {
		s.log.Warn("Recompute enqueue failed", "learner_id", learnerID, "error", err)
	}
}

func (s *masteryService) CurrentMastery(ctx context.Context, learnerID uuid.UUID, skillID string, now time.Time) (float64, error) {
	snap, err := s.masteryRepo.GetByLearnerAndSkill(ctx, nil, learnerID, skillID)
	if err != nil {
		return 0, err
	}
	if snap == nil {
		return 0, nil
	}
	return engine.Decayed(snap.Mastery, snap.HalfLifeDays, now.Sub(snap.LastUpdate)), nil
}

func (s *masteryService) MasteryVector(ctx context.Context, learnerID uuid.UUID, now time.Time) (map[string]float64, error) {
	snaps, err := s.masteryRepo.GetByLearner(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	vector := make(map[string]float64, len(snaps))
	for _, snap := range snaps {
		vector[snap.SkillID] = engine.Decayed(snap.Mastery, snap.HalfLifeDays, now.Sub(snap.LastUpdate))
	}
	return vector, nil
}

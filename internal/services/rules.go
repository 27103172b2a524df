package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/engine"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
)

const (
	// ActionRecommendPopular makes the rule-based signal include globally
	// popular lessons.
	ActionRecommendPopular = "recommend_popular"
	// ActionBoostSkillPrefix marks actions of the form "boost_skill:<id>"
	// that push lessons teaching that skill.
	ActionBoostSkillPrefix = "boost_skill:"
)

// FiredRule is one matched rule, in descending priority order.
type FiredRule struct {
	Name     string `json:"name"`
	Action   string `json:"action"`
	Priority int    `json:"priority"`
}

// RuleService evaluates the stored personalization rules against a learner's
// aggregate state. A rule whose predicate cannot be evaluated is treated as
// not fired.
type RuleService interface {
	Evaluate(ctx context.Context, learnerID uuid.UUID) ([]FiredRule, error)
	LearnerState(ctx context.Context, learnerID uuid.UUID) (engine.LearnerState, error)
}

type ruleService struct {
	db        *gorm.DB
	log       *logger.Logger
	ruleRepo  repos.RuleRepo
	eventRepo repos.PracticeEventRepo
	mastery   MasteryService
}

func NewRuleService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ruleRepo repos.RuleRepo,
	eventRepo repos.PracticeEventRepo,
	mastery MasteryService,
) RuleService {
	return &ruleService{
		db:        db,
		log:       baseLog.With("service", "RuleService"),
		ruleRepo:  ruleRepo,
		eventRepo: eventRepo,
		mastery:   mastery,
	}
}

func (s *ruleService) Evaluate(ctx context.Context, learnerID uuid.UUID) ([]FiredRule, error) {
	state, err := s.LearnerState(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	rules, err := s.ruleRepo.GetActive(ctx, nil)
	if err != nil {
		return nil, err
	}

	var fired []FiredRule
	for _, rule := range rules {
		predicate := engine.Predicate{
			Kind:      engine.PredicateKind(rule.Kind),
			Threshold: rule.Threshold,
			SkillID:   rule.SkillID,
			Count:     rule.Count,
		}
		holds, err := engine.EvaluatePredicate(predicate, state)
		if err != nil {
			s.log.Warn("Rule predicate failed, treating as not fired", "rule", rule.Name, "error", err)
			continue
		}
		if holds {
			fired = append(fired, FiredRule{Name: rule.Name, Action: rule.Action, Priority: rule.Priority})
		}
	}
	return fired, nil
}

func (s *ruleService) LearnerState(ctx context.Context, learnerID uuid.UUID) (engine.LearnerState, error) {
	vector, err := s.mastery.MasteryVector(ctx, learnerID, time.Now().UTC())
	if err != nil {
		return engine.LearnerState{}, err
	}
	count, err := s.eventRepo.CountByLearner(ctx, nil, learnerID)
	if err != nil {
		return engine.LearnerState{}, err
	}

	var average float64
	if len(vector) > 0 {
		var sum float64
		for _, m := range vector {
			sum += m
		}
		average = sum / float64(len(vector))
	}
	return engine.LearnerState{
		AverageMastery: average,
		EventCount:     int(count),
		SkillMastery:   vector,
	}, nil
}

package engine

import (
	"errors"
	"testing"

	apperrors "github.com/skillforge/skillforge-backend/internal/pkg/errors"
)

func TestEvaluatePredicate_MasteryBelow(t *testing.T) {
	st := LearnerState{AverageMastery: 0.4}
	fired, err := EvaluatePredicate(Predicate{Kind: PredicateMasteryBelow, Threshold: 0.5}, st)
	if err != nil || !fired {
		t.Errorf("expected fired, got fired=%v err=%v", fired, err)
	}
	fired, err = EvaluatePredicate(Predicate{Kind: PredicateMasteryBelow, Threshold: 0.3}, st)
	if err != nil || fired {
		t.Errorf("expected not fired, got fired=%v err=%v", fired, err)
	}
}

func TestEvaluatePredicate_EventCountBelow(t *testing.T) {
	st := LearnerState{EventCount: 2}
	fired, err := EvaluatePredicate(Predicate{Kind: PredicateEventCountBelow, Count: 5}, st)
	if err != nil || !fired {
		t.Errorf("expected fired, got fired=%v err=%v", fired, err)
	}
}

func TestEvaluatePredicate_SkillMasteryBelow(t *testing.T) {
	st := LearnerState{SkillMastery: map[string]float64{"math:fractions": 0.2}}
	fired, err := EvaluatePredicate(Predicate{Kind: PredicateSkillMasteryBelow, SkillID: "math:fractions", Threshold: 0.5}, st)
	if err != nil || !fired {
		t.Errorf("expected fired, got fired=%v err=%v", fired, err)
	}
	// Absent skill counts as mastery 0.
	fired, err = EvaluatePredicate(Predicate{Kind: PredicateSkillMasteryBelow, SkillID: "math:decimals", Threshold: 0.5}, st)
	if err != nil || !fired {
		t.Errorf("absent skill should fire below-threshold, got fired=%v err=%v", fired, err)
	}
}

func TestEvaluatePredicate_SkillMissing(t *testing.T) {
	st := LearnerState{SkillMastery: map[string]float64{"math:fractions": 0.2}}
	fired, err := EvaluatePredicate(Predicate{Kind: PredicateSkillMissing, SkillID: "math:decimals"}, st)
	if err != nil || !fired {
		t.Errorf("expected fired for missing skill, got fired=%v err=%v", fired, err)
	}
}

func TestEvaluatePredicate_UnknownKind(t *testing.T) {
	_, err := EvaluatePredicate(Predicate{Kind: "does_not_exist"}, LearnerState{})
	if !errors.Is(err, apperrors.ErrRuleEvaluation) {
		t.Errorf("unknown kind should return ErrRuleEvaluation, got %v", err)
	}
}

func TestEvaluatePredicate_MissingSkillParam(t *testing.T) {
	_, err := EvaluatePredicate(Predicate{Kind: PredicateSkillMissing}, LearnerState{})
	if !errors.Is(err, apperrors.ErrRuleEvaluation) {
		t.Errorf("missing skill id should return ErrRuleEvaluation, got %v", err)
	}
}

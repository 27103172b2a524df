package engine

import (
	"fmt"

	apperrors "github.com/skillforge/skillforge-backend/internal/pkg/errors"
)

// PredicateKind is the closed set of rule condition kinds. Conditions are
// tagged variants with explicit evaluators rather than dynamic lookups.
type PredicateKind string

const (
	PredicateMasteryBelow      PredicateKind = "mastery_below"
	PredicateEventCountBelow   PredicateKind = "event_count_below"
	PredicateSkillMasteryBelow PredicateKind = "skill_mastery_below"
	PredicateSkillMissing      PredicateKind = "skill_missing"
)

// Predicate parameterizes one condition of a PredicateKind.
type Predicate struct {
	Kind      PredicateKind
	Threshold float64
	SkillID   string
	Count     int
}

// LearnerState is the aggregate state predicates evaluate against.
type LearnerState struct {
	AverageMastery float64
	EventCount     int
	SkillMastery   map[string]float64
}

// EvaluatePredicate returns whether the predicate holds. Unknown kinds and
// missing parameters return ErrRuleEvaluation so callers can fail closed.
func EvaluatePredicate(p Predicate, st LearnerState) (bool, error) {
	switch p.Kind {
	case PredicateMasteryBelow:
		return st.AverageMastery < p.Threshold, nil
	case PredicateEventCountBelow:
		return st.EventCount < p.Count, nil
	case PredicateSkillMasteryBelow:
		if p.SkillID == "" {
			return false, fmt.Errorf("%w: %s without skill id", apperrors.ErrRuleEvaluation, p.Kind)
		}
		return st.SkillMastery[p.SkillID] < p.Threshold, nil
	case PredicateSkillMissing:
		if p.SkillID == "" {
			return false, fmt.Errorf("%w: %s without skill id", apperrors.ErrRuleEvaluation, p.Kind)
		}
		_, ok := st.SkillMastery[p.SkillID]
		return !ok, nil
	default:
		return false, fmt.Errorf("%w: unknown predicate kind %q", apperrors.ErrRuleEvaluation, p.Kind)
	}
}

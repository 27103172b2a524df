package engine

// UpdateRule converts a prior mastery and an observed outcome into a
// posterior mastery. Which rule is active is a configuration choice.
type UpdateRule interface {
	Name() string
	Update(prior float64, correct bool) float64
}

const (
	UpdateRuleBKT = "bkt"
	UpdateRuleEMA = "ema"

	DefaultSlip  = 0.1
	DefaultGuess = 0.2
	DefaultAlpha = 0.3
)

// BKT treats mastery as P(skill mastered) and applies a Bayesian update with
// slip = P(incorrect | mastered) and guess = P(correct | unmastered). Slip
// and guess are used as configured; zero is legal and means a deterministic
// learner model. Tuning.Validate bounds them at load.
type BKT struct {
	Slip  float64
	Guess float64
}

func (BKT) Name() string { return UpdateRuleBKT }

func (r BKT) Update(prior float64, correct bool) float64 {
	prior = Clamp(prior, 0, 1)

	var num, den float64
	if correct {
		num = prior * (1 - r.Slip)
		den = num + (1-prior)*r.Guess
	} else {
		num = prior * r.Slip
		den = num + (1-prior)*(1-r.Guess)
	}
	if den == 0 {
		return prior
	}
	return Clamp(num/den, 0, 1)
}

// EMA is the exponential-moving-average alternative for contexts that need
// fast, explainable updates without slip/guess tuning.
type EMA struct {
	Alpha float64
}

func (EMA) Name() string { return UpdateRuleEMA }

func (r EMA) Update(prior float64, correct bool) float64 {
	outcome := 0.0
	if correct {
		outcome = 1.0
	}
	return Clamp(prior+r.Alpha*(outcome-Clamp(prior, 0, 1)), 0, 1)
}

// RuleFromName resolves the configured update rule, defaulting to BKT.
func RuleFromName(name string) UpdateRule {
	switch name {
	case UpdateRuleEMA:
		return EMA{Alpha: DefaultAlpha}
	default:
		return BKT{Slip: DefaultSlip, Guess: DefaultGuess}
	}
}

package engine

import "fmt"

// Tuning bundles the adjustable knobs of the personalization engine. Values
// load from env with defaults and may be overridden by a YAML tuning file.
type Tuning struct {
	UpdateRule   string  `yaml:"update_rule"`
	Slip         float64 `yaml:"slip"`
	Guess        float64 `yaml:"guess"`
	Alpha        float64 `yaml:"alpha"`
	HalfLifeRate float64 `yaml:"half_life_rate"`

	WeakThreshold    float64 `yaml:"weak_threshold"`
	WeakCap          int     `yaml:"weak_cap"`
	ContentDivisor   float64 `yaml:"content_divisor"`
	ReadinessPenalty float64 `yaml:"readiness_penalty"`

	SimilarityThreshold   float64 `yaml:"similarity_threshold"`
	SimilarityTopK        int     `yaml:"similarity_top_k"`
	PeerCompletionDivisor float64 `yaml:"peer_completion_divisor"`

	Fusion FusionWeights `yaml:"fusion"`

	InvalidationDelta      float64 `yaml:"invalidation_delta"`
	BeginnerEventThreshold int     `yaml:"beginner_event_threshold"`

	StrongThreshold      float64 `yaml:"strong_threshold"`
	FocusBonus           float64 `yaml:"focus_bonus"`
	MasteredPenalty      float64 `yaml:"mastered_penalty"`
	PathReadinessPenalty float64 `yaml:"path_readiness_penalty"`
}

func DefaultTuning() Tuning {
	return Tuning{
		UpdateRule:   UpdateRuleBKT,
		Slip:         DefaultSlip,
		Guess:        DefaultGuess,
		Alpha:        DefaultAlpha,
		HalfLifeRate: DefaultHalfLifeRate,

		WeakThreshold:    DefaultWeakThreshold,
		WeakCap:          DefaultWeakCap,
		ContentDivisor:   DefaultContentDivisor,
		ReadinessPenalty: DefaultReadinessPenalty,

		SimilarityThreshold:   0.5,
		SimilarityTopK:        10,
		PeerCompletionDivisor: 10,

		Fusion: DefaultFusionWeights(),

		InvalidationDelta:      0.2,
		BeginnerEventThreshold: 5,

		StrongThreshold:      0.7,
		FocusBonus:           0.5,
		MasteredPenalty:      0.5,
		PathReadinessPenalty: 0.1,
	}
}

// Validate rejects update-rule parameters outside their working range. Zero
// slip and guess are legal (a learner who never slips or guesses); the
// update rules apply whatever Validate let through.
func (t Tuning) Validate() error {
	if t.Slip < 0 || t.Slip >= 1 {
		return fmt.Errorf("slip must be in [0, 1), got %g", t.Slip)
	}
	if t.Guess < 0 || t.Guess >= 1 {
		return fmt.Errorf("guess must be in [0, 1), got %g", t.Guess)
	}
	if t.Alpha <= 0 || t.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %g", t.Alpha)
	}
	if t.HalfLifeRate < 0 {
		return fmt.Errorf("half_life_rate must be >= 0, got %g", t.HalfLifeRate)
	}
	return nil
}

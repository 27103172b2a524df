package engine

import (
	"math"
	"time"
)

const (
	// DefaultHalfLifeDays is the starting half-life for a new snapshot.
	DefaultHalfLifeDays = 7.0
	// MinHalfLifeDays is the floor the half-life never adapts below.
	MinHalfLifeDays = 1.0
	// DefaultHalfLifeRate scales half-life adaptation per outcome.
	DefaultHalfLifeRate = 0.2
	// DefaultInitialMastery is the prior for a lazily created snapshot.
	DefaultInitialMastery = 0.3
)

// Decayed returns the current mastery estimate after exponential forgetting:
// mastery * 2^(-days/halfLife). Non-positive elapsed time means no decay.
func Decayed(mastery, halfLifeDays float64, elapsed time.Duration) float64 {
	mastery = Clamp(mastery, 0, 1)
	days := elapsed.Hours() / 24
	if days <= 0 {
		return mastery
	}
	if halfLifeDays < MinHalfLifeDays {
		halfLifeDays = MinHalfLifeDays
	}
	return Clamp(mastery*math.Exp2(-days/halfLifeDays), 0, 1)
}

// AdaptHalfLife widens the half-life after a correct outcome (longer spacing
// before the next required practice) and shrinks it after an incorrect one,
// never dropping below MinHalfLifeDays.
func AdaptHalfLife(halfLifeDays float64, correct bool, rate float64) float64 {
	if rate <= 0 {
		rate = DefaultHalfLifeRate
	}
	if correct {
		halfLifeDays *= 1 + rate
	} else {
		halfLifeDays *= 1 - rate
	}
	if halfLifeDays < MinHalfLifeDays {
		return MinHalfLifeDays
	}
	return halfLifeDays
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

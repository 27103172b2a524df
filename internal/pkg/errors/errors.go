package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is a generic sentinel for invalid input on write paths.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRuleEvaluation marks a rule predicate that could not be evaluated.
	// Callers treat the rule as not fired.
	ErrRuleEvaluation = errors.New("rule evaluation failed")
)

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

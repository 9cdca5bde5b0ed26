package progress

import "math"

// DefaultMaxQuestions is the fallback question ceiling used until the
// generation service reports its own estimate.
const DefaultMaxQuestions = 10

// Percent returns the completion percentage for answered questions against
// an expected maximum. The result is always within [0, 100]. A maximum of
// zero or less is treated as 1 so the calculation never divides by zero.
func Percent(answered, max int) int {
	if answered < 0 {
		answered = 0
	}
	if max <= 0 {
		max = 1
	}
	ratio := float64(answered) / float64(max)
	if ratio > 1 {
		ratio = 1
	}
	return int(math.Round(ratio * 100))
}

// Clamp bounds an externally supplied percentage to [0, 100].
func Clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Estimator derives a completion percentage for an intake session whose total
// question count is unknown up front. The generation service periodically
// reports a maximum question count and sometimes an authoritative completion
// percentage; the estimator widens its effective maximum monotonically so the
// displayed percentage never jumps backward when a later report shrinks.
type Estimator struct {
	effectiveMax  int
	authoritative int
}

// NewEstimator returns an Estimator seeded with DefaultMaxQuestions.
func NewEstimator() *Estimator {
	return &Estimator{effectiveMax: DefaultMaxQuestions, authoritative: -1}
}

// ObserveMax records a server-declared maximum question count. Values that
// would shrink the current effective maximum are ignored.
func (e *Estimator) ObserveMax(max int) {
	if max > e.effectiveMax {
		e.effectiveMax = max
	}
}

// EffectiveMax returns the current effective maximum question count.
func (e *Estimator) EffectiveMax() int {
	if e.effectiveMax <= 0 {
		return 1
	}
	return e.effectiveMax
}

// SetAuthoritative records a completion percentage supplied by the generation
// service. It takes precedence over the counter-based heuristic.
func (e *Estimator) SetAuthoritative(p int) {
	e.authoritative = Clamp(p)
}

// ClearAuthoritative discards any previously recorded authoritative
// percentage, returning the estimator to its heuristic.
func (e *Estimator) ClearAuthoritative() {
	e.authoritative = -1
}

// Percent returns the completion percentage for the given answered count.
// An authoritative value, when present, wins; otherwise the heuristic ratio
// against the effective maximum is used.
func (e *Estimator) Percent(answered int) int {
	if e.authoritative >= 0 {
		return e.authoritative
	}
	return Percent(answered, e.EffectiveMax())
}

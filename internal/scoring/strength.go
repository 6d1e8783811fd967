// Package scoring contains the pure scoring rules for the discovery board:
// evidence strength aggregation, decision gates, staleness detection,
// contradiction candidacy, and coverage gaps. Nothing here performs I/O or
// reads the clock; callers pass the current time explicitly.
package scoring

import "time"

// Sample is one linked evidence item's contribution to an aggregate
// strength. A Weight of zero or less means the link carries no explicit
// weight and defaults to 1.0.
type Sample struct {
	Strength float64
	Weight   float64
}

// Aggregate returns the weighted arithmetic mean of the samples' strengths.
// An empty sample set aggregates to 0.
func Aggregate(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum, weights float64
	for _, s := range samples {
		w := s.Weight
		if w <= 0 {
			w = 1.0
		}
		sum += s.Strength * w
		weights += w
	}
	return sum / weights
}

// Gate is the lifecycle stage an aggregate strength places a decision in.
type Gate string

const (
	GateCommit   Gate = "commit"
	GateValidate Gate = "validate"
	GatePark     Gate = "park"
)

// GateFor maps an aggregate strength to a gate. Aggregates above 70 commit,
// 40 through 70 inclusive validate, anything below 40 parks.
func GateFor(aggregate float64) Gate {
	switch {
	case aggregate > 70:
		return GateCommit
	case aggregate >= 40:
		return GateValidate
	default:
		return GatePark
	}
}

// Band names the strength tier used in analysis output and briefs.
func Band(strength float64) string {
	switch {
	case strength >= 70:
		return "Strong"
	case strength >= 40:
		return "Moderate"
	default:
		return "Weak"
	}
}

// Recency returns the decay factor applied to an evidence item's base
// strength: full weight inside 30 days, 0.85 inside 90, 0.7 beyond.
func Recency(now, observedAt time.Time) float64 {
	age := now.Sub(observedAt)
	switch {
	case age <= 30*24*time.Hour:
		return 1.0
	case age <= 90*24*time.Hour:
		return 0.85
	default:
		return 0.7
	}
}

// Computed derives an evidence item's effective strength from its base
// rating, source weight, and recency factor. Factors of zero or less
// default to 1.0. The result is clamped to [0, 100].
func Computed(base, sourceWeight, recency float64) float64 {
	if sourceWeight <= 0 {
		sourceWeight = 1.0
	}
	if recency <= 0 {
		recency = 1.0
	}
	v := base * sourceWeight * recency
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

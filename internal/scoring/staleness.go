package scoring

import (
	"fmt"
	"time"
)

const (
	// MaxRecencyDays is how long a decision may go without fresh evidence
	// before it is flagged for review.
	MaxRecencyDays = 21

	// StaleAgeDays is the age past which an evidence item counts as stale.
	StaleAgeDays = 90

	// StaleFractionMax is the tolerated share of stale evidence.
	StaleFractionMax = 0.5

	// WeakStrength is the aggregate below which a committed decision is
	// considered under-supported.
	WeakStrength = 40.0
)

// Report describes how fresh a set of dated evidence items is.
type Report struct {
	DaysSinceLatest int
	StaleFraction   float64
	NoDates         bool
}

// Staleness inspects the observation dates of linked evidence. Zero dated
// items yields a NoDates report with a stale fraction of 1.
func Staleness(now time.Time, dates []time.Time) Report {
	if len(dates) == 0 {
		return Report{NoDates: true, StaleFraction: 1}
	}
	latest := dates[0]
	stale := 0
	for _, d := range dates {
		if d.After(latest) {
			latest = d
		}
		if now.Sub(d) > StaleAgeDays*24*time.Hour {
			stale++
		}
	}
	return Report{
		DaysSinceLatest: int(now.Sub(latest).Hours() / 24),
		StaleFraction:   float64(stale) / float64(len(dates)),
	}
}

// StaleReasons lists why a decision should be flagged for review. Reasons
// are additive; an empty slice means the evidence base is healthy.
func StaleReasons(rep Report, gate Gate, aggregate float64) []string {
	if rep.NoDates {
		return []string{"no dated evidence"}
	}
	var reasons []string
	if rep.DaysSinceLatest > MaxRecencyDays {
		reasons = append(reasons, fmt.Sprintf("no new evidence in %d days", rep.DaysSinceLatest))
	}
	if rep.StaleFraction > StaleFractionMax {
		reasons = append(reasons, fmt.Sprintf("%.0f%% of evidence is older than %d days", rep.StaleFraction*100, StaleAgeDays))
	}
	if gate == GateCommit && aggregate < WeakStrength {
		reasons = append(reasons, fmt.Sprintf("committed with weak evidence (strength %.0f)", aggregate))
	}
	return reasons
}

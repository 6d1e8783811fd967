package scoring

// Coverage summarizes one linked evidence item for gap analysis.
type Coverage struct {
	SourceSystem   string
	Segment        string
	HasDirectVoice bool
	Strength       float64
}

// CoverageGaps lists what is missing from a note's evidence base. One
// linked item (or none) short-circuits to "needs more validation";
// otherwise gaps are additive.
func CoverageGaps(items []Coverage) []string {
	if len(items) <= 1 {
		return []string{"needs more validation"}
	}

	sources := make(map[string]struct{})
	segments := make(map[string]struct{})
	voice := false
	samples := make([]Sample, 0, len(items))
	for _, it := range items {
		if it.SourceSystem != "" {
			sources[it.SourceSystem] = struct{}{}
		}
		if it.Segment != "" {
			segments[it.Segment] = struct{}{}
		}
		if it.HasDirectVoice {
			voice = true
		}
		samples = append(samples, Sample{Strength: it.Strength})
	}

	var gaps []string
	if len(sources) <= 1 {
		gaps = append(gaps, "evidence comes from a single source")
	}
	if len(segments) <= 1 {
		gaps = append(gaps, "evidence covers a single customer segment")
	}
	if !voice {
		gaps = append(gaps, "no direct customer voice")
	}
	if Aggregate(samples) < WeakStrength {
		gaps = append(gaps, "aggregate evidence strength is weak")
	}
	return gaps
}

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/scoring"
)

// GapAnalyzer reports what is missing from a note's evidence base. It is
// deterministic; no model is involved.
type GapAnalyzer struct {
	store  Store
	logger *zap.Logger
}

// NewGapAnalyzer creates a gap analyzer.
func NewGapAnalyzer(st Store, logger *zap.Logger) *GapAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GapAnalyzer{store: st, logger: logger.Named("gaps")}
}

// Analyze returns the coverage gaps for the note's linked evidence.
func (g *GapAnalyzer) Analyze(ctx context.Context, noteID string) ([]string, error) {
	items, err := g.store.ListNoteEvidence(ctx, noteID)
	if err != nil {
		return nil, err
	}

	coverage := make([]scoring.Coverage, 0, len(items))
	for _, it := range items {
		strength := it.ComputedStrength
		if strength == 0 {
			strength = it.BaseStrength
		}
		coverage = append(coverage, scoring.Coverage{
			SourceSystem:   it.SourceSystem,
			Segment:        it.Segment,
			HasDirectVoice: it.HasDirectVoice,
			Strength:       strength,
		})
	}

	gaps := scoring.CoverageGaps(coverage)
	g.logger.Debug("gaps analyzed",
		zap.String("note_id", noteID),
		zap.Int("evidence", len(items)),
		zap.Strings("gaps", gaps),
	)
	return gaps, nil
}

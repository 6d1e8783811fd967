package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/scoring"
)

// BriefGenerator writes an executive brief for one decision from its
// linked evidence.
type BriefGenerator struct {
	store     Store
	llm       Reasoner
	maxTokens int
	logger    *zap.Logger
}

// NewBriefGenerator creates a brief generator.
func NewBriefGenerator(st Store, llm Reasoner, maxTokens int, logger *zap.Logger) *BriefGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &BriefGenerator{store: st, llm: llm, maxTokens: maxTokens, logger: logger.Named("brief")}
}

// Generate returns a markdown brief for the decision.
func (g *BriefGenerator) Generate(ctx context.Context, decisionID string) (string, error) {
	dec, err := g.store.GetDecision(ctx, decisionID)
	if err != nil {
		return "", err
	}
	links, err := g.store.ListDecisionEvidence(ctx, decisionID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Write an executive brief in markdown for this product decision. ")
	b.WriteString("Cover the decision, the supporting evidence, its overall strength, and open risks. ")
	b.WriteString("Cite evidence items by title.\n\n")
	fmt.Fprintf(&b, "Decision: %s\n", dec.Title)
	if dec.Hypothesis != "" {
		fmt.Fprintf(&b, "Hypothesis: %s\n", dec.Hypothesis)
	}
	fmt.Fprintf(&b, "Status: %s\n", dec.Status)
	fmt.Fprintf(&b, "Aggregate evidence strength: %.0f (%s)\n\n", dec.EvidenceStrength, scoring.Band(dec.EvidenceStrength))
	if len(links) == 0 {
		b.WriteString("No evidence is linked to this decision.\n")
	} else {
		b.WriteString("Evidence:\n")
		for _, l := range links {
			strength := l.ComputedStrength
			if strength == 0 {
				strength = l.BaseStrength
			}
			if l.Title != "" {
				fmt.Fprintf(&b, "- %s (%s, %s): %s\n", l.Title, l.SourceSystem, strings.ToLower(scoring.Band(strength)), l.Content)
			} else {
				fmt.Fprintf(&b, "- (%s, %s) %s\n", l.SourceSystem, strings.ToLower(scoring.Band(strength)), l.Content)
			}
		}
	}

	out, err := g.llm.Complete(ctx, b.String(), g.maxTokens)
	if err != nil {
		return "", err
	}

	g.logger.Debug("brief generated",
		zap.String("decision_id", decisionID),
		zap.Int("evidence", len(links)),
	)
	return strings.TrimSpace(out), nil
}

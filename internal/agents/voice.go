package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// voiceIndicators are surface markers of direct customer speech. Their
// absence in evidence from an analytics export means the item cannot
// carry direct voice and no model call is made.
var voiceIndicators = []string{
	`"`, "said", "told us", "mentioned", "asked", "complained",
	"interview", "call with",
	"i think", "i need", "i want", "we need", "our team",
}

// analyticsSources produce numeric extracts, never direct quotes.
var analyticsSources = map[string]bool{
	"mixpanel":  true,
	"amplitude": true,
}

// VoiceDetector decides whether an evidence item contains direct customer
// voice rather than a secondhand summary.
type VoiceDetector struct {
	store  Store
	llm    Reasoner
	logger *zap.Logger
}

// NewVoiceDetector creates a voice detector.
func NewVoiceDetector(st Store, llm Reasoner, logger *zap.Logger) *VoiceDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoiceDetector{store: st, llm: llm, logger: logger.Named("voice")}
}

// Detect classifies the item and persists the result. Analytics-sourced
// evidence with no voice indicators is classified false without a model
// call; everything else goes to the model for a YES/NO verdict.
func (d *VoiceDetector) Detect(ctx context.Context, evidenceID string) (bool, error) {
	ev, err := d.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return false, err
	}

	if analyticsSources[strings.ToLower(ev.SourceSystem)] && !hasVoiceIndicator(ev.Content) {
		if err := d.store.SetEvidenceVoice(ctx, evidenceID, false); err != nil {
			return false, err
		}
		return false, nil
	}

	out, err := d.llm.Complete(ctx, buildVoicePrompt(ev.Content), 10)
	if err != nil {
		return false, err
	}
	hasVoice := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "YES")

	if err := d.store.SetEvidenceVoice(ctx, evidenceID, hasVoice); err != nil {
		return false, err
	}

	d.logger.Debug("voice detected",
		zap.String("evidence_id", evidenceID),
		zap.Bool("has_voice", hasVoice),
	)
	return hasVoice, nil
}

func hasVoiceIndicator(content string) bool {
	lower := strings.ToLower(content)
	for _, ind := range voiceIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

func buildVoicePrompt(content string) string {
	var b strings.Builder
	b.WriteString("Does this evidence contain the direct voice of a customer ")
	b.WriteString("(a quote, a paraphrased statement, or firsthand feedback), ")
	b.WriteString("as opposed to aggregate metrics or a team member's interpretation?\n\n")
	b.WriteString("Evidence:\n")
	b.WriteString(content)
	b.WriteString("\n\nAnswer with exactly YES or NO.")
	return b.String()
}

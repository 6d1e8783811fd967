package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Segments the classifier can assign. The model must answer with one or
// more of these, comma-separated; the first one is the primary segment.
var knownSegments = []string{"Enterprise", "Mid-market", "SMB", "Consumer", "Internal"}

// SegmentResult is the outcome of classifying one evidence item.
type SegmentResult struct {
	Primary string
	All     []string
}

// SegmentClassifier assigns a customer segment to evidence items.
type SegmentClassifier struct {
	store  Store
	llm    Reasoner
	logger *zap.Logger
}

// NewSegmentClassifier creates a segment classifier.
func NewSegmentClassifier(st Store, llm Reasoner, logger *zap.Logger) *SegmentClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SegmentClassifier{store: st, llm: llm, logger: logger.Named("segment")}
}

// Classify asks the model for the evidence item's segment(s) and persists
// the primary one.
func (c *SegmentClassifier) Classify(ctx context.Context, evidenceID string) (SegmentResult, error) {
	ev, err := c.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return SegmentResult{}, err
	}

	out, err := c.llm.Complete(ctx, buildSegmentPrompt(ev.Content), 100)
	if err != nil {
		return SegmentResult{}, err
	}

	all := parseSegments(out)
	if len(all) == 0 {
		return SegmentResult{}, fmt.Errorf("no recognized segment in model answer %q", strings.TrimSpace(out))
	}

	if err := c.store.SetEvidenceSegment(ctx, evidenceID, all[0]); err != nil {
		return SegmentResult{}, err
	}

	c.logger.Debug("evidence classified",
		zap.String("evidence_id", evidenceID),
		zap.String("primary", all[0]),
		zap.Strings("all", all),
	)
	return SegmentResult{Primary: all[0], All: all}, nil
}

func buildSegmentPrompt(content string) string {
	var b strings.Builder
	b.WriteString("Classify which customer segment(s) this piece of product evidence refers to.\n\n")
	b.WriteString("Evidence:\n")
	b.WriteString(content)
	b.WriteString("\n\nSegments: ")
	b.WriteString(strings.Join(knownSegments, ", "))
	b.WriteString("\n\nRespond with ONLY the matching segment name(s), comma-separated, most relevant first.")
	return b.String()
}

// parseSegments extracts known segment names from the model's
// comma-separated answer, preserving answer order.
func parseSegments(answer string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		for _, seg := range knownSegments {
			if strings.EqualFold(part, seg) || strings.Contains(strings.ToLower(part), strings.ToLower(seg)) {
				if !seen[seg] {
					seen[seg] = true
					out = append(out, seg)
				}
				break
			}
		}
	}
	return out
}

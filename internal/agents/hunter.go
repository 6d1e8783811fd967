package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/reasoning"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

// EvidenceHunter searches the workspace's indexed evidence for support
// (or counter-evidence) for a hypothesis and links what it finds to a
// decision.
type EvidenceHunter struct {
	store            Store
	search           Searcher
	llm              Reasoner
	recallSimilarity float64
	logger           *zap.Logger
}

// NewEvidenceHunter creates an evidence hunter.
func NewEvidenceHunter(st Store, search Searcher, llm Reasoner, recallSimilarity float64, logger *zap.Logger) *EvidenceHunter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceHunter{
		store:            st,
		search:           search,
		llm:              llm,
		recallSimilarity: recallSimilarity,
		logger:           logger.Named("hunter"),
	}
}

// GenerateQueries asks the model for up to three search queries that
// approach the hypothesis from different angles. A response that cannot
// be decoded falls back to the hypothesis itself.
func (h *EvidenceHunter) GenerateQueries(ctx context.Context, hypothesis string) ([]string, error) {
	var b strings.Builder
	b.WriteString("Generate search queries to find evidence for or against this product hypothesis:\n\n")
	b.WriteString(hypothesis)
	b.WriteString("\n\nRespond with ONLY a JSON array of at most 3 short query strings.")

	raw, err := h.llm.Complete(ctx, b.String(), 200)
	if err != nil {
		return nil, err
	}

	var queries []string
	if err := reasoning.Decode(raw, &queries); err != nil {
		h.logger.Debug("query generation was unstructured, using hypothesis", zap.Error(err))
		return []string{hypothesis}, nil
	}
	if len(queries) == 0 {
		return []string{hypothesis}, nil
	}
	if len(queries) > 3 {
		queries = queries[:3]
	}
	return queries, nil
}

// Search runs each query against the workspace index and dedupes hits
// by evidence ID, keeping the highest-similarity copy.
func (h *EvidenceHunter) Search(ctx context.Context, workspaceID string, queries []string) ([]vectorstore.Match, error) {
	var out []vectorstore.Match
	seen := make(map[string]bool)
	for _, q := range queries {
		matches, err := h.search.SearchText(ctx, workspaceID, q, 10, h.recallSimilarity)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// FilterRank asks the model which hits actually bear on the hypothesis,
// in relevance order. A response that cannot be decoded keeps all hits.
func (h *EvidenceHunter) FilterRank(ctx context.Context, hypothesis string, matches []vectorstore.Match) ([]vectorstore.Match, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Which of these evidence items are relevant to the hypothesis below, ")
	b.WriteString("for or against it? Ignore items that merely share vocabulary.\n\n")
	fmt.Fprintf(&b, "Hypothesis: %s\n\nEvidence:\n", hypothesis)
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s\n", i, m.Content)
	}
	b.WriteString("\nRespond with ONLY a JSON array of the relevant item numbers, most relevant first.")

	raw, err := h.llm.Complete(ctx, b.String(), 200)
	if err != nil {
		return nil, err
	}

	var indexes []int
	if err := reasoning.Decode(raw, &indexes); err != nil {
		h.logger.Debug("filter response was unstructured, keeping all hits", zap.Error(err))
		return matches, nil
	}

	var out []vectorstore.Match
	for _, i := range indexes {
		if i >= 0 && i < len(matches) {
			out = append(out, matches[i])
		}
	}
	return out, nil
}

// Summarize writes a short paragraph on what the found evidence says
// about the hypothesis.
func (h *EvidenceHunter) Summarize(ctx context.Context, hypothesis string, matches []vectorstore.Match) (string, error) {
	if len(matches) == 0 {
		return "No relevant evidence found for this hypothesis.", nil
	}

	var b strings.Builder
	b.WriteString("Summarize in one paragraph what this evidence says about the hypothesis, ")
	b.WriteString("including whether it supports or undermines it.\n\n")
	fmt.Fprintf(&b, "Hypothesis: %s\n\nEvidence:\n", hypothesis)
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s\n", m.Content)
	}

	out, err := h.llm.Complete(ctx, b.String(), 500)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Store links the found evidence to the decision, refreshes its gate
// recommendation, and records an alert carrying the summary. It returns
// the alert ID.
func (h *EvidenceHunter) Store(ctx context.Context, workspaceID, decisionID, hypothesis, summary string, matches []vectorstore.Match) (string, error) {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if err := h.store.LinkDecisionEvidence(ctx, decisionID, m.ID, 1); err != nil {
			return "", err
		}
		ids = append(ids, m.ID)
	}
	if len(ids) > 0 {
		if err := refreshDecision(ctx, h.store, decisionID); err != nil {
			return "", err
		}
	}

	alertType := store.AlertInfo
	if len(ids) > 0 {
		alertType = store.AlertActionNeeded
	}
	alert := &store.Alert{
		WorkspaceID:        workspaceID,
		AgentType:          "evidence_hunter",
		AlertType:          alertType,
		Title:              fmt.Sprintf("Evidence hunt: %d item(s) found", len(ids)),
		Content:            summary,
		Metadata:           map[string]any{"hypothesis": hypothesis},
		RelatedEvidenceIDs: ids,
		RelatedDecisionID:  decisionID,
	}
	if err := h.store.CreateAlert(ctx, alert); err != nil {
		return "", err
	}

	h.logger.Info("evidence hunt stored",
		zap.String("decision_id", decisionID),
		zap.Int("linked", len(ids)),
	)
	return alert.ID, nil
}

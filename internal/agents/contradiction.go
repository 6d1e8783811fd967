package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/reasoning"
	"github.com/fyrsmithlabs/discoveryd/internal/scoring"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

// maxContradictions caps how many contradictions one run reports.
const maxContradictions = 3

// Contradiction pairs the analyzed evidence with an item contradicting it.
type Contradiction struct {
	EvidenceID string
	Reason     string
}

// ContradictionDetector finds evidence that contradicts a newly linked
// item: broad vector recall, then the direct rule (opposite sentiment,
// different source system), then an advisory model pass when the direct
// rule finds nothing.
type ContradictionDetector struct {
	store            Store
	search           Searcher
	llm              Reasoner
	directSimilarity float64
	recallSimilarity float64
	logger           *zap.Logger
}

// NewContradictionDetector creates a contradiction detector.
func NewContradictionDetector(st Store, search Searcher, llm Reasoner, directSimilarity, recallSimilarity float64, logger *zap.Logger) *ContradictionDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContradictionDetector{
		store:            st,
		search:           search,
		llm:              llm,
		directSimilarity: directSimilarity,
		recallSimilarity: recallSimilarity,
		logger:           logger.Named("contradiction"),
	}
}

// Detect returns at most maxContradictions contradictions for the
// evidence item.
func (d *ContradictionDetector) Detect(ctx context.Context, workspaceID, evidenceID string) ([]Contradiction, error) {
	subject, err := d.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	matches, err := d.search.SearchLike(ctx, workspaceID, evidenceID, 10, d.recallSimilarity)
	if errors.Is(err, vectorstore.ErrNotIndexed) {
		d.logger.Debug("evidence not indexed yet, skipping", zap.String("evidence_id", evidenceID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, len(matches))
	similarity := make(map[string]float64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		similarity[m.ID] = m.Similarity
	}
	items, err := d.store.ListEvidenceByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	neighbors := make([]scoring.Neighbor, 0, len(items))
	for _, it := range items {
		neighbors = append(neighbors, scoring.Neighbor{
			Item: scoring.Item{
				ID:           it.ID,
				Sentiment:    scoring.Sentiment(it.Sentiment),
				SourceSystem: it.SourceSystem,
			},
			Similarity: similarity[it.ID],
		})
	}

	subjectItem := scoring.Item{
		ID:           subject.ID,
		Sentiment:    scoring.Sentiment(subject.Sentiment),
		SourceSystem: subject.SourceSystem,
	}

	var out []Contradiction
	for _, c := range scoring.Conflicts(subjectItem, neighbors, d.directSimilarity) {
		out = append(out, Contradiction{EvidenceID: c.Neighbor.ID, Reason: c.Reason})
	}

	// The direct rule found nothing; ask the model for an advisory read
	// over the recall set.
	if len(out) == 0 && len(items) >= 2 {
		advisory, err := d.adjudicate(ctx, subject, items)
		if err != nil {
			d.logger.Debug("advisory adjudication skipped", zap.Error(err))
		} else {
			out = advisory
		}
	}

	if len(out) > maxContradictions {
		out = out[:maxContradictions]
	}
	return out, nil
}

func (d *ContradictionDetector) adjudicate(ctx context.Context, subject store.Evidence, candidates []store.Evidence) ([]Contradiction, error) {
	raw, err := d.llm.Complete(ctx, buildAdjudicationPrompt(subject, candidates), 500)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := reasoning.Decode(raw, &rows); err != nil {
		return nil, err
	}

	var out []Contradiction
	for _, row := range rows {
		for _, c := range candidates {
			if strings.HasPrefix(c.ID, row.ID) {
				out = append(out, Contradiction{EvidenceID: c.ID, Reason: row.Reason})
				break
			}
		}
	}
	return out, nil
}

func buildAdjudicationPrompt(subject store.Evidence, candidates []store.Evidence) string {
	var b strings.Builder
	b.WriteString("Does any of the following evidence contradict the new evidence?\n\n")
	b.WriteString("New evidence:\n")
	fmt.Fprintf(&b, "- [%s] (%s, %s) %s\n", idPrefix(subject.ID), subject.SourceSystem, subject.Sentiment, subject.Content)
	b.WriteString("\nExisting evidence:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- [%s] (%s, %s) %s\n", idPrefix(c.ID), c.SourceSystem, c.Sentiment, c.Content)
	}
	b.WriteString("\nRespond with a JSON array of objects {\"id\": \"<8-char id>\", \"reason\": \"<why>\"}.\n")
	b.WriteString("Respond with [] if nothing contradicts.")
	return b.String()
}

func idPrefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

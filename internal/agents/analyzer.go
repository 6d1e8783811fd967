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
)

// SessionSnapshot is everything the analyzer needs about one session,
// read in a single gathering pass.
type SessionSnapshot struct {
	Session     store.Session
	Objectives  []store.Objective
	Constraints []store.Constraint
	Notes       []store.StickyNote
	Evidence    map[string][]store.Evidence
}

// RankedProblem is one prioritized problem from the analysis.
type RankedProblem struct {
	Problem          string `json:"problem"`
	Rank             int    `json:"rank"`
	EvidenceStrength string `json:"evidence_strength"`
	Recommendation   string `json:"recommendation"`
	Reasoning        string `json:"reasoning"`
}

// SessionAnalysis is the structured result of analyzing a session.
// Raw holds the model's verbatim answer when it could not be decoded;
// in that case the structured fields are empty.
type SessionAnalysis struct {
	RankedProblems     []RankedProblem `json:"ranked_problems"`
	ObjectivesStatus   string          `json:"objectives_status"`
	SuggestedNextSteps []string        `json:"suggested_next_steps"`
	Summary            string          `json:"summary"`
	Raw                string          `json:"-"`
}

// Recommendations counts the problems carrying a commit or validate
// recommendation.
func (a SessionAnalysis) Recommendations() int {
	n := 0
	for _, p := range a.RankedProblems {
		if p.Recommendation == string(scoring.GateCommit) || p.Recommendation == string(scoring.GateValidate) {
			n++
		}
	}
	return n
}

// SessionAnalyzer turns a session's notes and evidence into ranked,
// evidence-backed recommendations.
type SessionAnalyzer struct {
	store     Store
	llm       Reasoner
	maxTokens int
	logger    *zap.Logger
}

// NewSessionAnalyzer creates a session analyzer.
func NewSessionAnalyzer(st Store, llm Reasoner, maxTokens int, logger *zap.Logger) *SessionAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &SessionAnalyzer{store: st, llm: llm, maxTokens: maxTokens, logger: logger.Named("analyzer")}
}

// Gather reads the session, its objectives, constraints, notes, and each
// note's linked evidence. It re-reads everything on every call so retry
// passes see board changes made since the first pass.
func (a *SessionAnalyzer) Gather(ctx context.Context, sessionID string) (SessionSnapshot, error) {
	snap := SessionSnapshot{Evidence: make(map[string][]store.Evidence)}

	var err error
	if snap.Session, err = a.store.GetSession(ctx, sessionID); err != nil {
		return snap, err
	}
	if snap.Objectives, err = a.store.ListObjectives(ctx, sessionID); err != nil {
		return snap, err
	}
	if snap.Constraints, err = a.store.ListConstraints(ctx, sessionID); err != nil {
		return snap, err
	}
	if snap.Notes, err = a.store.ListSessionNotes(ctx, sessionID); err != nil {
		return snap, err
	}
	for _, note := range snap.Notes {
		items, err := a.store.ListNoteEvidence(ctx, note.ID)
		if err != nil {
			return snap, err
		}
		if len(items) > 0 {
			snap.Evidence[note.ID] = items
		}
	}
	return snap, nil
}

// Analyze asks the model for ranked problems and next steps. A response
// that cannot be decoded is not an error: the raw text is preserved and
// the analysis counts as zero recommendations.
func (a *SessionAnalyzer) Analyze(ctx context.Context, snap SessionSnapshot) (SessionAnalysis, error) {
	raw, err := a.llm.Complete(ctx, buildAnalysisPrompt(snap), a.maxTokens)
	if err != nil {
		return SessionAnalysis{}, err
	}

	var analysis SessionAnalysis
	if err := reasoning.Decode(raw, &analysis); err != nil {
		if errors.Is(err, reasoning.ErrUnstructured) {
			a.logger.Warn("analysis response was unstructured, keeping raw text",
				zap.String("session_id", snap.Session.ID))
			return SessionAnalysis{Raw: raw}, nil
		}
		return SessionAnalysis{}, err
	}

	a.logger.Debug("session analyzed",
		zap.String("session_id", snap.Session.ID),
		zap.Int("problems", len(analysis.RankedProblems)),
		zap.Int("recommendations", analysis.Recommendations()),
	)
	return analysis, nil
}

func buildAnalysisPrompt(snap SessionSnapshot) string {
	var b strings.Builder
	b.WriteString("You are analyzing a product discovery session. ")
	b.WriteString("Rank the problems by evidence strength and recommend a gate for each.\n\n")
	fmt.Fprintf(&b, "Session: %s\n\n", snap.Session.Title)

	if len(snap.Objectives) > 0 {
		b.WriteString("Objectives:\n")
		for _, o := range snap.Objectives {
			fmt.Fprintf(&b, "- %s\n", o.Content)
		}
		b.WriteString("\n")
	}
	if len(snap.Constraints) > 0 {
		b.WriteString("Constraints:\n")
		for _, c := range snap.Constraints {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", c.Label, c.Value, c.Type)
		}
		b.WriteString("\n")
	}

	byKind := make(map[string][]store.StickyNote)
	for _, n := range snap.Notes {
		byKind[n.Kind] = append(byKind[n.Kind], n)
	}
	for _, kind := range []string{store.NoteProblem, store.NoteSolution, store.NoteAssumption, store.NoteGeneral} {
		notes := byKind[kind]
		if len(notes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s notes:\n", strings.ToUpper(kind[:1])+kind[1:])
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n.Content)
			for _, ev := range snap.Evidence[n.ID] {
				strength := ev.ComputedStrength
				if strength == 0 {
					strength = ev.BaseStrength
				}
				fmt.Fprintf(&b, "  evidence (%s, %s): %s\n", ev.SourceSystem, strings.ToLower(scoring.Band(strength)), ev.Content)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with ONLY a JSON object:\n")
	b.WriteString(`{"ranked_problems": [{"problem": "...", "rank": 1, "evidence_strength": "strong|moderate|weak", "recommendation": "commit|validate|park", "reasoning": "..."}], "objectives_status": "...", "suggested_next_steps": ["..."], "summary": "..."}`)
	return b.String()
}

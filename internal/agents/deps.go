// Package agents implements the analysis agents behind the pipelines:
// segment classification, contradiction detection, strength refresh,
// customer-voice detection, coverage gaps, session analysis, evidence
// hunting, decay monitoring, and brief generation. Each agent depends on
// narrow interfaces so pipelines and tests can substitute fakes.
package agents

import (
	"context"

	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

// Store is the board persistence surface the agents depend on,
// implemented by *store.Store.
type Store interface {
	GetEvidence(ctx context.Context, id string) (store.Evidence, error)
	ListEvidenceByIDs(ctx context.Context, ids []string) ([]store.Evidence, error)
	SetEvidenceSegment(ctx context.Context, id, segment string) error
	SetEvidenceVoice(ctx context.Context, id string, hasVoice bool) error
	SetEvidenceComputedStrength(ctx context.Context, id string, strength float64) error

	GetNote(ctx context.Context, id string) (store.StickyNote, error)
	ListNoteEvidence(ctx context.Context, noteID string) ([]store.Evidence, error)
	ListNotesWithEvidence(ctx context.Context, workspaceID string) ([]store.StickyNote, error)

	GetSession(ctx context.Context, id string) (store.Session, error)
	ListObjectives(ctx context.Context, sessionID string) ([]store.Objective, error)
	ListConstraints(ctx context.Context, sessionID string) ([]store.Constraint, error)
	ListSessionNotes(ctx context.Context, sessionID string) ([]store.StickyNote, error)

	GetDecision(ctx context.Context, id string) (store.Decision, error)
	ListDecisionsByStatus(ctx context.Context, workspaceID string, statuses []string) ([]store.Decision, error)
	ListDecisionEvidence(ctx context.Context, decisionID string) ([]store.LinkedEvidence, error)
	SetDecisionStats(ctx context.Context, id string, count int, strength float64, gate string) error
	DecisionsForEvidence(ctx context.Context, evidenceID string) ([]string, error)
	LinkDecisionEvidence(ctx context.Context, decisionID, evidenceID string, weight float64) error

	CreateAlert(ctx context.Context, a *store.Alert) error
}

// Searcher is the vector recall surface, implemented by *vectorstore.Index.
type Searcher interface {
	SearchLike(ctx context.Context, workspaceID, evidenceID string, limit int, minSimilarity float64) ([]vectorstore.Match, error)
	SearchText(ctx context.Context, workspaceID, query string, limit int, minSimilarity float64) ([]vectorstore.Match, error)
}

// Reasoner is the LLM completion surface, implemented by
// *reasoning.Service.
type Reasoner interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

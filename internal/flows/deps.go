// Package flows wires the analysis agents into the board's pipelines:
// evidence linking, session analysis, and evidence hunting. Each flow is a
// compiled task graph over a typed state; agent failures inside a flow are
// contained by the engine and surface as neutral fields in the result.
package flows

import (
	"context"

	"github.com/fyrsmithlabs/discoveryd/internal/agents"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

// Store is the persistence surface the flows touch directly,
// implemented by *store.Store.
type Store interface {
	GetEvidence(ctx context.Context, id string) (store.Evidence, error)
	GetNote(ctx context.Context, id string) (store.StickyNote, error)
	GetDecision(ctx context.Context, id string) (store.Decision, error)
	SetSessionStatus(ctx context.Context, id, status string) error
	CreateAlert(ctx context.Context, a *store.Alert) error
}

// Segmenter classifies an evidence item's customer segment.
type Segmenter interface {
	Classify(ctx context.Context, evidenceID string) (agents.SegmentResult, error)
}

// ConflictFinder detects evidence contradicting an item.
type ConflictFinder interface {
	Detect(ctx context.Context, workspaceID, evidenceID string) ([]agents.Contradiction, error)
}

// Refresher recomputes an item's strength and refreshes the gate
// recommendations of linked decisions.
type Refresher interface {
	Refresh(ctx context.Context, evidenceID string) (float64, error)
}

// VoiceSensor decides whether an item carries direct customer voice.
type VoiceSensor interface {
	Detect(ctx context.Context, evidenceID string) (bool, error)
}

// GapScanner reports coverage gaps for a note's evidence base.
type GapScanner interface {
	Analyze(ctx context.Context, noteID string) ([]string, error)
}

// Analyzer gathers and analyzes a discovery session.
type Analyzer interface {
	Gather(ctx context.Context, sessionID string) (agents.SessionSnapshot, error)
	Analyze(ctx context.Context, snap agents.SessionSnapshot) (agents.SessionAnalysis, error)
}

// Hunter searches indexed evidence for a hypothesis.
type Hunter interface {
	GenerateQueries(ctx context.Context, hypothesis string) ([]string, error)
	Search(ctx context.Context, workspaceID string, queries []string) ([]vectorstore.Match, error)
	FilterRank(ctx context.Context, hypothesis string, matches []vectorstore.Match) ([]vectorstore.Match, error)
	Summarize(ctx context.Context, hypothesis string, matches []vectorstore.Match) (string, error)
	Store(ctx context.Context, workspaceID, decisionID, hypothesis, summary string, matches []vectorstore.Match) (string, error)
}

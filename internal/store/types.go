package store

import "time"

// Session is one discovery session on the board.
type Session struct {
	ID          string
	WorkspaceID string
	Title       string
	Status      string
	CreatedAt   time.Time
}

// Objective is a goal attached to a session.
type Objective struct {
	ID         string
	SessionID  string
	Content    string
	OrderIndex int
}

// Constraint bounds a session (vision, kpi, resources, budget, timeline,
// technical).
type Constraint struct {
	ID        string
	SessionID string
	Type      string
	Label     string
	Value     string
}

// Note kinds.
const (
	NoteProblem    = "problem"
	NoteSolution   = "solution"
	NoteAssumption = "assumption"
	NoteGeneral    = "general"
)

// StickyNote is one card on the board.
type StickyNote struct {
	ID          string
	SessionID   string
	WorkspaceID string
	Kind        string
	Content     string
	HasEvidence bool
	CreatedAt   time.Time
}

// Evidence is a captured signal: an interview note, a support ticket, an
// analytics extract. ObservedAt is zero when the observation date is
// unknown.
type Evidence struct {
	ID               string
	WorkspaceID      string
	Title            string
	Content          string
	SourceSystem     string
	Sentiment        string
	Segment          string
	HasDirectVoice   bool
	BaseStrength     float64
	SourceWeight     float64
	ComputedStrength float64
	ObservedAt       time.Time
	CreatedAt        time.Time
}

// Decision is a product decision. Status is set by the user; the gate
// recommendation is derived from linked evidence and never overwrites it.
type Decision struct {
	ID                 string
	WorkspaceID        string
	Title              string
	Hypothesis         string
	Status             string
	GateRecommendation string
	EvidenceCount      int
	EvidenceStrength   float64
	CreatedAt          time.Time
}

// LinkedEvidence is an evidence row together with its link weight.
type LinkedEvidence struct {
	Evidence
	Weight float64
}

// Alert types.
const (
	AlertInfo         = "info"
	AlertActionNeeded = "action_needed"
)

// Alert is the immutable record of one pipeline run's outcome.
type Alert struct {
	ID                 string
	WorkspaceID        string
	AgentType          string
	AlertType          string
	Title              string
	Content            string
	Metadata           map[string]any
	RelatedEvidenceIDs []string
	RelatedDecisionID  string
	CreatedAt          time.Time
}

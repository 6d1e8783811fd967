// Package board is the write side of the discovery board: sessions,
// sticky notes, evidence, decisions, and the links between them. It keeps
// the vector index in step with the evidence table and refreshes decision
// gate recommendations whenever their evidence base changes.
package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/scoring"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

// ErrInvalidStatus indicates a decision status outside commit, validate,
// and park.
var ErrInvalidStatus = errors.New("invalid decision status")

// Indexer keeps evidence searchable, implemented by *vectorstore.Index.
type Indexer interface {
	Add(ctx context.Context, workspaceID string, docs []vectorstore.Document) error
	Delete(ctx context.Context, workspaceID string, ids ...string) error
}

// Service owns board mutations. Reads go straight to the store; writes
// pass through here so the index and decision gates stay consistent.
type Service struct {
	store  *store.Store
	index  Indexer
	logger *zap.Logger
}

// New creates a board service.
func New(st *store.Store, index Indexer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, index: index, logger: logger.Named("board")}
}

// CreateSession opens a discovery session in the gathering state.
func (s *Service) CreateSession(ctx context.Context, workspaceID, title string) (store.Session, error) {
	sess := store.Session{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Title:       title,
		Status:      "gathering",
	}
	if err := s.store.CreateSession(ctx, &sess); err != nil {
		return store.Session{}, err
	}
	return sess, nil
}

// AddObjective appends an objective to the session.
func (s *Service) AddObjective(ctx context.Context, sessionID, content string) (store.Objective, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return store.Objective{}, err
	}
	obj := store.Objective{ID: uuid.NewString(), SessionID: sessionID, Content: content, OrderIndex: -1}
	if err := s.store.AddObjective(ctx, &obj); err != nil {
		return store.Objective{}, err
	}
	return obj, nil
}

// AddConstraint attaches a constraint to the session.
func (s *Service) AddConstraint(ctx context.Context, sessionID, kind, label, value string) (store.Constraint, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return store.Constraint{}, err
	}
	c := store.Constraint{ID: uuid.NewString(), SessionID: sessionID, Type: kind, Label: label, Value: value}
	if err := s.store.AddConstraint(ctx, &c); err != nil {
		return store.Constraint{}, err
	}
	return c, nil
}

// CreateNote puts a sticky note on the session's board.
func (s *Service) CreateNote(ctx context.Context, sessionID, kind, content string) (store.StickyNote, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return store.StickyNote{}, err
	}
	n := store.StickyNote{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		WorkspaceID: sess.WorkspaceID,
		Kind:        kind,
		Content:     content,
	}
	if err := s.store.CreateNote(ctx, &n); err != nil {
		return store.StickyNote{}, err
	}
	return n, nil
}

// AddEvidence captures an evidence item and indexes it for search.
func (s *Service) AddEvidence(ctx context.Context, ev store.Evidence) (store.Evidence, error) {
	if ev.Content == "" {
		return store.Evidence{}, fmt.Errorf("evidence content is required")
	}
	if err := s.store.CreateEvidence(ctx, &ev); err != nil {
		return store.Evidence{}, err
	}

	doc := vectorstore.Document{
		ID:      ev.ID,
		Content: ev.Content,
		Metadata: map[string]string{
			"source_system": ev.SourceSystem,
			"sentiment":     ev.Sentiment,
		},
	}
	if err := s.index.Add(ctx, ev.WorkspaceID, []vectorstore.Document{doc}); err != nil {
		// The row exists; search just won't find it until re-indexed.
		s.logger.Warn("evidence indexing failed",
			zap.String("evidence_id", ev.ID),
			zap.Error(err),
		)
	}
	return ev, nil
}

// DeleteEvidence removes an item from the store and the index.
func (s *Service) DeleteEvidence(ctx context.Context, evidenceID string) error {
	ev, err := s.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return err
	}
	decisionIDs, err := s.store.DecisionsForEvidence(ctx, evidenceID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEvidence(ctx, evidenceID); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, ev.WorkspaceID, evidenceID); err != nil {
		s.logger.Warn("evidence deindexing failed",
			zap.String("evidence_id", evidenceID),
			zap.Error(err),
		)
	}
	for _, id := range decisionIDs {
		if err := s.RecomputeDecisionStats(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// LinkNoteEvidence attaches evidence to a note.
func (s *Service) LinkNoteEvidence(ctx context.Context, noteID, evidenceID string) error {
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		return err
	}
	if _, err := s.store.GetEvidence(ctx, evidenceID); err != nil {
		return err
	}
	return s.store.LinkNoteEvidence(ctx, noteID, evidenceID)
}

// UnlinkNoteEvidence detaches evidence from a note.
func (s *Service) UnlinkNoteEvidence(ctx context.Context, noteID, evidenceID string) error {
	return s.store.UnlinkNoteEvidence(ctx, noteID, evidenceID)
}

// CreateDecision records a decision; it starts parked with no evidence.
func (s *Service) CreateDecision(ctx context.Context, workspaceID, title, hypothesis string) (store.Decision, error) {
	d := store.Decision{
		ID:                 uuid.NewString(),
		WorkspaceID:        workspaceID,
		Title:              title,
		Hypothesis:         hypothesis,
		Status:             string(scoring.GatePark),
		GateRecommendation: string(scoring.GatePark),
	}
	if err := s.store.CreateDecision(ctx, &d); err != nil {
		return store.Decision{}, err
	}
	return d, nil
}

// SetDecisionStatus records the user's commit/validate/park call. Gate
// recommendations never overwrite it; this is the only writer.
func (s *Service) SetDecisionStatus(ctx context.Context, decisionID, status string) (store.Decision, error) {
	switch scoring.Gate(status) {
	case scoring.GateCommit, scoring.GateValidate, scoring.GatePark:
	default:
		return store.Decision{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := s.store.GetDecision(ctx, decisionID); err != nil {
		return store.Decision{}, err
	}
	if err := s.store.SetDecisionStatus(ctx, decisionID, status); err != nil {
		return store.Decision{}, err
	}
	return s.store.GetDecision(ctx, decisionID)
}

// LinkDecisionEvidence attaches evidence to a decision and refreshes its
// gate recommendation.
func (s *Service) LinkDecisionEvidence(ctx context.Context, decisionID, evidenceID string, weight float64) (store.Decision, error) {
	if _, err := s.store.GetDecision(ctx, decisionID); err != nil {
		return store.Decision{}, err
	}
	if _, err := s.store.GetEvidence(ctx, evidenceID); err != nil {
		return store.Decision{}, err
	}
	if err := s.store.LinkDecisionEvidence(ctx, decisionID, evidenceID, weight); err != nil {
		return store.Decision{}, err
	}
	if err := s.RecomputeDecisionStats(ctx, decisionID); err != nil {
		return store.Decision{}, err
	}
	return s.store.GetDecision(ctx, decisionID)
}

// UnlinkDecisionEvidence detaches evidence from a decision and refreshes
// its gate recommendation. Unlinking the last item resets the stats to
// 0 / 0 / park.
func (s *Service) UnlinkDecisionEvidence(ctx context.Context, decisionID, evidenceID string) (store.Decision, error) {
	if err := s.store.UnlinkDecisionEvidence(ctx, decisionID, evidenceID); err != nil {
		return store.Decision{}, err
	}
	if err := s.RecomputeDecisionStats(ctx, decisionID); err != nil {
		return store.Decision{}, err
	}
	return s.store.GetDecision(ctx, decisionID)
}

// RecomputeDecisionStats re-aggregates the decision's linked evidence and
// updates its count, strength, and gate recommendation. The user-set
// status is left alone.
func (s *Service) RecomputeDecisionStats(ctx context.Context, decisionID string) error {
	links, err := s.store.ListDecisionEvidence(ctx, decisionID)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return s.store.SetDecisionStats(ctx, decisionID, 0, 0, string(scoring.GatePark))
	}

	samples := make([]scoring.Sample, 0, len(links))
	for _, l := range links {
		strength := l.ComputedStrength
		if strength == 0 {
			strength = l.BaseStrength
		}
		samples = append(samples, scoring.Sample{Strength: strength, Weight: l.Weight})
	}
	aggregate := scoring.Aggregate(samples)
	return s.store.SetDecisionStats(ctx, decisionID, len(links), aggregate, string(scoring.GateFor(aggregate)))
}

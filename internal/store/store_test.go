package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{WorkspaceID: "ws1", Title: "Q1 discovery"}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NotEmpty(t, sess.ID)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q1 discovery", got.Title)
	assert.Equal(t, "active", got.Status)

	require.NoError(t, s.SetSessionStatus(ctx, sess.ID, "archived"))
	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", got.Status)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestObjectivesAndConstraints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{WorkspaceID: "ws1", Title: "t"}
	require.NoError(t, s.CreateSession(ctx, sess))

	require.NoError(t, s.AddObjective(ctx, &Objective{SessionID: sess.ID, Content: "first", OrderIndex: -1}))
	require.NoError(t, s.AddObjective(ctx, &Objective{SessionID: sess.ID, Content: "second", OrderIndex: -1}))

	objs, err := s.ListObjectives(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "first", objs[0].Content)
	assert.Equal(t, 1, objs[1].OrderIndex)

	require.NoError(t, s.AddConstraint(ctx, &Constraint{SessionID: sess.ID, Type: "budget", Label: "cap", Value: "50k"}))
	cons, err := s.ListConstraints(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, cons, 1)
	assert.Equal(t, "budget", cons[0].Type)
}

func TestNoteEvidenceLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{WorkspaceID: "ws1", Title: "t"}
	require.NoError(t, s.CreateSession(ctx, sess))
	note := &StickyNote{SessionID: sess.ID, WorkspaceID: "ws1", Kind: NoteProblem, Content: "checkout is slow"}
	require.NoError(t, s.CreateNote(ctx, note))

	ev := &Evidence{WorkspaceID: "ws1", Content: "ticket", SourceSystem: "zendesk"}
	require.NoError(t, s.CreateEvidence(ctx, ev))

	require.NoError(t, s.LinkNoteEvidence(ctx, note.ID, ev.ID))
	got, err := s.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.True(t, got.HasEvidence)

	linked, err := s.ListNoteEvidence(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, ev.ID, linked[0].ID)

	withEv, err := s.ListNotesWithEvidence(ctx, "ws1")
	require.NoError(t, err)
	require.Len(t, withEv, 1)

	require.NoError(t, s.UnlinkNoteEvidence(ctx, note.ID, ev.ID))
	got, err = s.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.False(t, got.HasEvidence)
}

func TestEvidenceUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	observed := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	ev := &Evidence{
		WorkspaceID:  "ws1",
		Title:        "Checkout timeout interview",
		Content:      "customer said checkout times out",
		SourceSystem: "interview",
		Sentiment:    "negative",
		BaseStrength: 80,
		ObservedAt:   observed,
	}
	require.NoError(t, s.CreateEvidence(ctx, ev))

	require.NoError(t, s.SetEvidenceSegment(ctx, ev.ID, "Enterprise"))
	require.NoError(t, s.SetEvidenceVoice(ctx, ev.ID, true))
	require.NoError(t, s.SetEvidenceComputedStrength(ctx, ev.ID, 68))

	got, err := s.GetEvidence(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Checkout timeout interview", got.Title)
	assert.Equal(t, "Enterprise", got.Segment)
	assert.True(t, got.HasDirectVoice)
	assert.Equal(t, 68.0, got.ComputedStrength)
	assert.Equal(t, 1.0, got.SourceWeight)
	assert.True(t, got.ObservedAt.Equal(observed))

	items, err := s.ListEvidenceByIDs(ctx, []string{ev.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.ErrorIs(t, s.SetEvidenceSegment(ctx, "missing", "SMB"), ErrNotFound)
}

func TestDecisionLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &Decision{WorkspaceID: "ws1", Title: "build SSO", Hypothesis: "enterprise buyers require SSO"}
	require.NoError(t, s.CreateDecision(ctx, d))
	assert.Equal(t, "park", d.Status)
	assert.Equal(t, "park", d.GateRecommendation)

	ev1 := &Evidence{WorkspaceID: "ws1", Content: "a", SourceSystem: "zendesk", ComputedStrength: 80}
	ev2 := &Evidence{WorkspaceID: "ws1", Content: "b", SourceSystem: "interview", ComputedStrength: 20}
	require.NoError(t, s.CreateEvidence(ctx, ev1))
	require.NoError(t, s.CreateEvidence(ctx, ev2))

	require.NoError(t, s.LinkDecisionEvidence(ctx, d.ID, ev1.ID, 0))
	require.NoError(t, s.LinkDecisionEvidence(ctx, d.ID, ev2.ID, 2))

	linked, err := s.ListDecisionEvidence(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, 1.0, linked[0].Weight)
	assert.Equal(t, 2.0, linked[1].Weight)

	ids, err := s.DecisionsForEvidence(ctx, ev1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID}, ids)

	require.NoError(t, s.SetDecisionStats(ctx, d.ID, 2, 50, "validate"))
	got, err := s.GetDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.EvidenceCount)
	assert.Equal(t, "validate", got.GateRecommendation)
	assert.Equal(t, "park", got.Status)
	assert.Equal(t, "enterprise buyers require SSO", got.Hypothesis)

	require.NoError(t, s.SetDecisionStatus(ctx, d.ID, "commit"))
	got, err = s.GetDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "commit", got.Status)
	assert.Equal(t, "validate", got.GateRecommendation)

	require.NoError(t, s.UnlinkDecisionEvidence(ctx, d.ID, ev1.ID))
	linked, err = s.ListDecisionEvidence(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)

	byStatus, err := s.ListDecisionsByStatus(ctx, "ws1", []string{"commit", "validate"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
}

func TestAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &Alert{
		WorkspaceID:        "ws1",
		AgentType:          "evidence_link",
		Title:              "Evidence analyzed",
		Content:            "1 contradiction found",
		Metadata:           map[string]any{"contradictions": float64(1)},
		RelatedEvidenceIDs: []string{"ev-1"},
	}
	require.NoError(t, s.CreateAlert(ctx, a))

	alerts, err := s.ListAlerts(ctx, "ws1", "evidence_link", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertInfo, alerts[0].AlertType)
	assert.Equal(t, float64(1), alerts[0].Metadata["contradictions"])
	assert.Equal(t, []string{"ev-1"}, alerts[0].RelatedEvidenceIDs)

	alerts, err = s.ListAlerts(ctx, "ws1", "decay_monitor", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestWorkspaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDecision(ctx, &Decision{WorkspaceID: "ws2", Title: "x"}))
	require.NoError(t, s.CreateEvidence(ctx, &Evidence{WorkspaceID: "ws1", Content: "c", SourceSystem: "s"}))

	ws, err := s.Workspaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws1", "ws2"}, ws)
}

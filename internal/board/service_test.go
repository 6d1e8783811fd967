package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

type fakeIndexer struct {
	added   []vectorstore.Document
	deleted []string
}

func (f *fakeIndexer) Add(_ context.Context, _ string, docs []vectorstore.Document) error {
	f.added = append(f.added, docs...)
	return nil
}

func (f *fakeIndexer) Delete(_ context.Context, _ string, ids ...string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

func newService(t *testing.T) (*Service, *fakeIndexer) {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	idx := &fakeIndexer{}
	return New(st, idx, nil), idx
}

func TestSessionLifecycle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "ws1", "Q3 discovery")
	require.NoError(t, err)
	assert.Equal(t, "gathering", sess.Status)

	obj, err := svc.AddObjective(ctx, sess.ID, "reduce churn")
	require.NoError(t, err)
	assert.Equal(t, 0, obj.OrderIndex)

	obj2, err := svc.AddObjective(ctx, sess.ID, "grow enterprise")
	require.NoError(t, err)
	assert.Equal(t, 1, obj2.OrderIndex)

	_, err = svc.AddConstraint(ctx, sess.ID, "timeline", "launch", "end of Q3")
	require.NoError(t, err)

	_, err = svc.AddObjective(ctx, "missing", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddEvidenceIndexes(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()

	ev, err := svc.AddEvidence(ctx, store.Evidence{
		WorkspaceID:  "ws1",
		Content:      "Customer cancelled over pricing",
		SourceSystem: "interview",
		Sentiment:    "negative",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 50.0, ev.BaseStrength)

	require.Len(t, idx.added, 1)
	assert.Equal(t, ev.ID, idx.added[0].ID)
	assert.Equal(t, "interview", idx.added[0].Metadata["source_system"])

	_, err = svc.AddEvidence(ctx, store.Evidence{WorkspaceID: "ws1"})
	assert.Error(t, err)
}

func TestDecisionGating(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	dec, err := svc.CreateDecision(ctx, "ws1", "Ship SSO", "enterprise deals stall without SSO")
	require.NoError(t, err)
	assert.Equal(t, "park", dec.Status)
	assert.Equal(t, "park", dec.GateRecommendation)
	assert.Equal(t, "enterprise deals stall without SSO", dec.Hypothesis)

	strong, err := svc.AddEvidence(ctx, store.Evidence{
		WorkspaceID: "ws1", Content: "Three prospects require SSO", BaseStrength: 80, ComputedStrength: 80,
	})
	require.NoError(t, err)
	weak, err := svc.AddEvidence(ctx, store.Evidence{
		WorkspaceID: "ws1", Content: "One mention in passing", BaseStrength: 20, ComputedStrength: 20,
	})
	require.NoError(t, err)

	dec, err = svc.LinkDecisionEvidence(ctx, dec.ID, strong.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, dec.EvidenceCount)
	assert.Equal(t, "commit", dec.GateRecommendation)
	assert.Equal(t, "park", dec.Status)

	// [80, 20] averages to 50: validate.
	dec, err = svc.LinkDecisionEvidence(ctx, dec.ID, weak.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, dec.EvidenceCount)
	assert.InDelta(t, 50.0, dec.EvidenceStrength, 0.001)
	assert.Equal(t, "validate", dec.GateRecommendation)

	dec, err = svc.UnlinkDecisionEvidence(ctx, dec.ID, strong.ID)
	require.NoError(t, err)
	assert.Equal(t, "park", dec.GateRecommendation)

	// Unlinking the last item resets the stats entirely.
	dec, err = svc.UnlinkDecisionEvidence(ctx, dec.ID, weak.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dec.EvidenceCount)
	assert.Zero(t, dec.EvidenceStrength)
	assert.Equal(t, "park", dec.GateRecommendation)
	assert.Equal(t, "park", dec.Status)
}

func TestDecisionStatusIsUserOwned(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	dec, err := svc.CreateDecision(ctx, "ws1", "Ship SSO", "")
	require.NoError(t, err)

	dec, err = svc.SetDecisionStatus(ctx, dec.ID, "commit")
	require.NoError(t, err)
	assert.Equal(t, "commit", dec.Status)

	weak, err := svc.AddEvidence(ctx, store.Evidence{
		WorkspaceID: "ws1", Content: "One offhand remark", BaseStrength: 20, ComputedStrength: 20,
	})
	require.NoError(t, err)

	// Weak evidence lowers the recommendation but never the user's call.
	dec, err = svc.LinkDecisionEvidence(ctx, dec.ID, weak.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "commit", dec.Status)
	assert.Equal(t, "park", dec.GateRecommendation)

	require.NoError(t, svc.RecomputeDecisionStats(ctx, dec.ID))
	got, err := svc.SetDecisionStatus(ctx, dec.ID, "commit")
	require.NoError(t, err)
	assert.Equal(t, "commit", got.Status)
	assert.Equal(t, "park", got.GateRecommendation)

	_, err = svc.SetDecisionStatus(ctx, dec.ID, "shipped")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetDecisionStatus(ctx, "missing", "park")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteEvidenceRefreshesGate(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()

	dec, err := svc.CreateDecision(ctx, "ws1", "Ship SSO", "")
	require.NoError(t, err)
	ev, err := svc.AddEvidence(ctx, store.Evidence{
		WorkspaceID: "ws1", Content: "Strong demand", ComputedStrength: 80,
	})
	require.NoError(t, err)
	dec, err = svc.LinkDecisionEvidence(ctx, dec.ID, ev.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "commit", dec.GateRecommendation)

	require.NoError(t, svc.DeleteEvidence(ctx, ev.ID))
	assert.Equal(t, []string{ev.ID}, idx.deleted)

	_, err = svc.LinkDecisionEvidence(ctx, dec.ID, ev.ID, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	refreshed, err := svc.UnlinkDecisionEvidence(ctx, dec.ID, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed.EvidenceCount)
	assert.Equal(t, "park", refreshed.GateRecommendation)
}

func TestNoteEvidenceLinks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "ws1", "Q3")
	require.NoError(t, err)
	note, err := svc.CreateNote(ctx, sess.ID, store.NoteProblem, "Churn in month two")
	require.NoError(t, err)
	assert.Equal(t, "ws1", note.WorkspaceID)

	ev, err := svc.AddEvidence(ctx, store.Evidence{WorkspaceID: "ws1", Content: "Cancelled account"})
	require.NoError(t, err)

	require.NoError(t, svc.LinkNoteEvidence(ctx, note.ID, ev.ID))
	assert.ErrorIs(t, svc.LinkNoteEvidence(ctx, "missing", ev.ID), store.ErrNotFound)

	require.NoError(t, svc.UnlinkNoteEvidence(ctx, note.ID, ev.ID))
}

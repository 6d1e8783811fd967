package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/agents"
	"github.com/fyrsmithlabs/discoveryd/internal/board"
	"github.com/fyrsmithlabs/discoveryd/internal/flows"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
	"github.com/fyrsmithlabs/discoveryd/internal/vectorstore"
)

type noopIndexer struct{}

func (noopIndexer) Add(context.Context, string, []vectorstore.Document) error { return nil }
func (noopIndexer) Delete(context.Context, string, ...string) error           { return nil }

type stubLink struct{ res flows.LinkResult }

func (s stubLink) Run(context.Context, string, string, string) (flows.LinkResult, error) {
	return s.res, nil
}

type stubSession struct{ res flows.SessionResult }

func (s stubSession) Run(context.Context, string) (flows.SessionResult, error) {
	return s.res, nil
}

type stubHunt struct{ res flows.HuntResult }

func (s stubHunt) Run(context.Context, string, string, string) (flows.HuntResult, error) {
	return s.res, nil
}

type stubDecay struct{ report agents.DecayReport }

func (s stubDecay) Run(context.Context, string) (agents.DecayReport, error) {
	return s.report, nil
}

type stubBrief struct{ brief string }

func (s stubBrief) Generate(context.Context, string) (string, error) {
	return s.brief, nil
}

func newTestServer(t *testing.T, cfg *Config) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := board.New(st, noopIndexer{}, nil)
	pipelines := Pipelines{
		Link:    stubLink{res: flows.LinkResult{Segment: "SMB", AlertID: "alert-1"}},
		Session: stubSession{res: flows.SessionResult{Passes: 1, PassedQuality: true}},
		Hunt:    stubHunt{res: flows.HuntResult{Summary: "found", AlertID: "alert-2"}},
		Decay:   stubDecay{report: agents.DecayReport{Digest: "healthy"}},
		Brief:   stubBrief{brief: "# Brief"},
	}
	s, err := NewServer(b, st, pipelines, zap.NewNop(), cfg)
	require.NoError(t, err)
	return s, st
}

func doJSON(s *Server, method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAPIKeyAuth(t *testing.T) {
	s, _ := newTestServer(t, &Config{APIKey: "secret"})

	rec := doJSON(s, http.MethodGet, "/api/v1/alerts?workspace_id=ws1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/alerts?workspace_id=ws1", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/alerts?workspace_id=ws1", "", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = doJSON(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doJSON(s, http.MethodPost, "/api/v1/sessions", `{"workspace_id": "ws1", "title": "Q3"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "gathering", sess.Status)

	rec = doJSON(s, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/objectives", `{"content": "reduce churn"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/sessions/"+sess.ID+"/notes", `{"kind": "problem", "content": "churn"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/sessions/"+sess.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail SessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Objectives, 1)
	assert.Len(t, detail.Notes, 1)

	rec = doJSON(s, http.MethodGet, "/api/v1/sessions/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/sessions", `{"title": "no workspace"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvidenceAndDecisionRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doJSON(s, http.MethodPost, "/api/v1/evidence",
		`{"workspace_id": "ws1", "title": "SSO interviews", "content": "Strong demand", "source_system": "interview", "base_strength": 80}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var ev store.Evidence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.Equal(t, 80.0, ev.BaseStrength)
	assert.Equal(t, "SSO interviews", ev.Title)

	rec = doJSON(s, http.MethodPost, "/api/v1/decisions",
		`{"workspace_id": "ws1", "title": "Ship SSO", "hypothesis": "enterprise deals stall without SSO"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var dec store.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dec))
	assert.Equal(t, "park", dec.Status)
	assert.Equal(t, "enterprise deals stall without SSO", dec.Hypothesis)

	rec = doJSON(s, http.MethodPost, "/api/v1/decisions/"+dec.ID+"/evidence/"+ev.ID, `{"weight": 1}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dec))
	assert.Equal(t, 1, dec.EvidenceCount)
	assert.Equal(t, "commit", dec.GateRecommendation)
	assert.Equal(t, "park", dec.Status)

	rec = doJSON(s, http.MethodPut, "/api/v1/decisions/"+dec.ID+"/status", `{"status": "commit"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dec))
	assert.Equal(t, "commit", dec.Status)

	rec = doJSON(s, http.MethodPut, "/api/v1/decisions/"+dec.ID+"/status", `{"status": "shipped"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/decisions/"+dec.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail DecisionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Evidence, 1)

	// Unlinking drops the recommendation; the user's commit stands.
	rec = doJSON(s, http.MethodDelete, "/api/v1/decisions/"+dec.ID+"/evidence/"+ev.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dec))
	assert.Equal(t, "park", dec.GateRecommendation)
	assert.Equal(t, "commit", dec.Status)

	rec = doJSON(s, http.MethodDelete, "/api/v1/evidence/"+ev.ID, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(s, http.MethodDelete, "/api/v1/evidence/"+ev.ID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLinkNoteEvidenceTriggersPipeline(t *testing.T) {
	s, st := newTestServer(t, nil)
	ctx := context.Background()

	sess := store.Session{WorkspaceID: "ws1", Title: "Q3", Status: "gathering"}
	require.NoError(t, st.CreateSession(ctx, &sess))
	note := store.StickyNote{SessionID: sess.ID, WorkspaceID: "ws1", Kind: store.NoteProblem, Content: "churn"}
	require.NoError(t, st.CreateNote(ctx, &note))
	ev := store.Evidence{WorkspaceID: "ws1", Content: "cancelled account"}
	require.NoError(t, st.CreateEvidence(ctx, &ev))

	rec := doJSON(s, http.MethodPost, "/api/v1/notes/"+note.ID+"/evidence/"+ev.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res LinkNoteEvidenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "SMB", res.Segment)
	assert.Equal(t, "alert-1", res.AlertID)

	linked, err := st.ListNoteEvidence(ctx, note.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestAgentRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := doJSON(s, http.MethodPost, "/api/v1/agents/session-analysis", `{"session_id": "s1"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/agents/session-analysis", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/agents/hunt",
		`{"workspace_id": "ws1", "decision_id": "d1", "hypothesis": "users want SSO"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alert-2")

	rec = doJSON(s, http.MethodPost, "/api/v1/agents/decay-report", `{"workspace_id": "ws1"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = doJSON(s, http.MethodPost, "/api/v1/agents/brief", `{"decision_id": "d1"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Brief")

	rec = doJSON(s, http.MethodPost, "/api/v1/agents/evidence-link",
		`{"workspace_id": "ws1", "note_id": "n1", "evidence_id": "e1"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

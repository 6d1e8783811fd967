package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/discoveryd/internal/store"
)

// CreateSessionRequest is the request body for POST /api/v1/sessions.
type CreateSessionRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Title       string `json:"title"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceID == "" || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id and title are required")
	}
	sess, err := s.board.CreateSession(c.Request().Context(), req.WorkspaceID, req.Title)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// SessionDetail is the response body for GET /api/v1/sessions/:id.
type SessionDetail struct {
	Session     store.Session      `json:"session"`
	Objectives  []store.Objective  `json:"objectives"`
	Constraints []store.Constraint `json:"constraints"`
	Notes       []store.StickyNote `json:"notes"`
}

func (s *Server) handleGetSession(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return httpError(err)
	}
	detail := SessionDetail{Session: sess}
	if detail.Objectives, err = s.store.ListObjectives(ctx, id); err != nil {
		return httpError(err)
	}
	if detail.Constraints, err = s.store.ListConstraints(ctx, id); err != nil {
		return httpError(err)
	}
	if detail.Notes, err = s.store.ListSessionNotes(ctx, id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// AddObjectiveRequest is the request body for POST
// /api/v1/sessions/:id/objectives.
type AddObjectiveRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAddObjective(c echo.Context) error {
	var req AddObjectiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	obj, err := s.board.AddObjective(c.Request().Context(), c.Param("id"), req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, obj)
}

// AddConstraintRequest is the request body for POST
// /api/v1/sessions/:id/constraints.
type AddConstraintRequest struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Value string `json:"value"`
}

func (s *Server) handleAddConstraint(c echo.Context) error {
	var req AddConstraintRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Type == "" || req.Label == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type and label are required")
	}
	con, err := s.board.AddConstraint(c.Request().Context(), c.Param("id"), req.Type, req.Label, req.Value)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, con)
}

// CreateNoteRequest is the request body for POST /api/v1/sessions/:id/notes.
type CreateNoteRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func (s *Server) handleCreateNote(c echo.Context) error {
	var req CreateNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if req.Kind == "" {
		req.Kind = store.NoteGeneral
	}
	note, err := s.board.CreateNote(c.Request().Context(), c.Param("id"), req.Kind, req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, note)
}

// AddEvidenceRequest is the request body for POST /api/v1/evidence.
type AddEvidenceRequest struct {
	WorkspaceID  string     `json:"workspace_id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	SourceSystem string     `json:"source_system"`
	Sentiment    string     `json:"sentiment"`
	BaseStrength float64    `json:"base_strength"`
	SourceWeight float64    `json:"source_weight"`
	ObservedAt   *time.Time `json:"observed_at"`
}

func (s *Server) handleAddEvidence(c echo.Context) error {
	var req AddEvidenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceID == "" || req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id and content are required")
	}
	ev := store.Evidence{
		WorkspaceID:  req.WorkspaceID,
		Title:        req.Title,
		Content:      req.Content,
		SourceSystem: req.SourceSystem,
		Sentiment:    req.Sentiment,
		BaseStrength: req.BaseStrength,
		SourceWeight: req.SourceWeight,
	}
	if req.ObservedAt != nil {
		ev.ObservedAt = *req.ObservedAt
	}
	created, err := s.board.AddEvidence(c.Request().Context(), ev)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleDeleteEvidence(c echo.Context) error {
	if err := s.board.DeleteEvidence(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LinkNoteEvidenceResponse reports the pipeline run triggered by the link.
type LinkNoteEvidenceResponse struct {
	Segment        string   `json:"segment,omitempty"`
	Contradictions int      `json:"contradictions"`
	Strength       float64  `json:"strength"`
	HasVoice       bool     `json:"has_voice"`
	Gaps           []string `json:"gaps,omitempty"`
	AlertID        string   `json:"alert_id,omitempty"`
}

func (s *Server) handleLinkNoteEvidence(c echo.Context) error {
	ctx := c.Request().Context()
	noteID := c.Param("id")
	evidenceID := c.Param("evidenceID")

	if err := s.board.LinkNoteEvidence(ctx, noteID, evidenceID); err != nil {
		return httpError(err)
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return httpError(err)
	}
	res, err := s.pipelines.Link.Run(ctx, note.WorkspaceID, noteID, evidenceID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, LinkNoteEvidenceResponse{
		Segment:        res.Segment,
		Contradictions: len(res.Contradictions),
		Strength:       res.Strength,
		HasVoice:       res.HasVoice,
		Gaps:           res.Gaps,
		AlertID:        res.AlertID,
	})
}

func (s *Server) handleUnlinkNoteEvidence(c echo.Context) error {
	if err := s.board.UnlinkNoteEvidence(c.Request().Context(), c.Param("id"), c.Param("evidenceID")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateDecisionRequest is the request body for POST /api/v1/decisions.
type CreateDecisionRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Title       string `json:"title"`
	Hypothesis  string `json:"hypothesis"`
}

func (s *Server) handleCreateDecision(c echo.Context) error {
	var req CreateDecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceID == "" || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id and title are required")
	}
	dec, err := s.board.CreateDecision(c.Request().Context(), req.WorkspaceID, req.Title, req.Hypothesis)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, dec)
}

// SetDecisionStatusRequest is the request body for PUT
// /api/v1/decisions/:id/status.
type SetDecisionStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetDecisionStatus(c echo.Context) error {
	var req SetDecisionStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	dec, err := s.board.SetDecisionStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dec)
}

// DecisionDetail is the response body for GET /api/v1/decisions/:id.
type DecisionDetail struct {
	Decision store.Decision         `json:"decision"`
	Evidence []store.LinkedEvidence `json:"evidence"`
}

func (s *Server) handleGetDecision(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	dec, err := s.store.GetDecision(ctx, id)
	if err != nil {
		return httpError(err)
	}
	links, err := s.store.ListDecisionEvidence(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, DecisionDetail{Decision: dec, Evidence: links})
}

// LinkDecisionEvidenceRequest is the request body for POST
// /api/v1/decisions/:id/evidence/:evidenceID.
type LinkDecisionEvidenceRequest struct {
	Weight float64 `json:"weight"`
}

func (s *Server) handleLinkDecisionEvidence(c echo.Context) error {
	var req LinkDecisionEvidenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	dec, err := s.board.LinkDecisionEvidence(c.Request().Context(), c.Param("id"), c.Param("evidenceID"), req.Weight)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dec)
}

func (s *Server) handleUnlinkDecisionEvidence(c echo.Context) error {
	dec, err := s.board.UnlinkDecisionEvidence(c.Request().Context(), c.Param("id"), c.Param("evidenceID"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dec)
}

func (s *Server) handleListAlerts(c echo.Context) error {
	workspaceID := c.QueryParam("workspace_id")
	if workspaceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id is required")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	alerts, err := s.store.ListAlerts(c.Request().Context(), workspaceID, c.QueryParam("agent_type"), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, alerts)
}

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/discoveryd/internal/agents"
)

// EvidenceLinkRequest is the request body for POST
// /api/v1/agents/evidence-link.
type EvidenceLinkRequest struct {
	WorkspaceID string `json:"workspace_id"`
	NoteID      string `json:"note_id"`
	EvidenceID  string `json:"evidence_id"`
}

func (s *Server) handleAgentEvidenceLink(c echo.Context) error {
	var req EvidenceLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceID == "" || req.NoteID == "" || req.EvidenceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id, note_id, and evidence_id are required")
	}
	res, err := s.pipelines.Link.Run(c.Request().Context(), req.WorkspaceID, req.NoteID, req.EvidenceID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// SessionAnalysisRequest is the request body for POST
// /api/v1/agents/session-analysis.
type SessionAnalysisRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleAgentSessionAnalysis(c echo.Context) error {
	var req SessionAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	res, err := s.pipelines.Session.Run(c.Request().Context(), req.SessionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// HuntRequest is the request body for POST /api/v1/agents/hunt.
// Hypothesis is optional; when empty, the decision's stored hypothesis
// is used.
type HuntRequest struct {
	WorkspaceID string `json:"workspace_id"`
	DecisionID  string `json:"decision_id"`
	Hypothesis  string `json:"hypothesis"`
}

func (s *Server) handleAgentHunt(c echo.Context) error {
	var req HuntRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceID == "" || req.DecisionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id and decision_id are required")
	}
	res, err := s.pipelines.Hunt.Run(c.Request().Context(), req.WorkspaceID, req.DecisionID, req.Hypothesis)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// DecayReportRequest is the request body for POST
// /api/v1/agents/decay-report.
type DecayReportRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// DecayReportResponse is the response body for POST
// /api/v1/agents/decay-report.
type DecayReportResponse struct {
	Flagged []agents.FlaggedItem `json:"flagged"`
	Digest  string               `json:"digest"`
	AlertID string               `json:"alert_id"`
}

func (s *Server) handleAgentDecayReport(c echo.Context) error {
	var req DecayReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id is required")
	}
	report, err := s.pipelines.Decay.Run(c.Request().Context(), req.WorkspaceID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, DecayReportResponse{
		Flagged: report.Flagged,
		Digest:  report.Digest,
		AlertID: report.AlertID,
	})
}

// BriefRequest is the request body for POST /api/v1/agents/brief.
type BriefRequest struct {
	DecisionID string `json:"decision_id"`
}

// BriefResponse is the response body for POST /api/v1/agents/brief.
type BriefResponse struct {
	Brief string `json:"brief"`
}

func (s *Server) handleAgentBrief(c echo.Context) error {
	var req BriefRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DecisionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "decision_id is required")
	}
	brief, err := s.pipelines.Brief.Generate(c.Request().Context(), req.DecisionID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, BriefResponse{Brief: brief})
}

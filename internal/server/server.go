// Package server exposes the discovery board and its pipelines over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/discoveryd/internal/agents"
	"github.com/fyrsmithlabs/discoveryd/internal/board"
	"github.com/fyrsmithlabs/discoveryd/internal/flows"
	"github.com/fyrsmithlabs/discoveryd/internal/store"
)

// Config holds HTTP server configuration. An empty APIKey disables
// authentication.
type Config struct {
	Host   string
	Port   int
	APIKey string
}

// LinkFlow runs the evidence-link pipeline.
type LinkFlow interface {
	Run(ctx context.Context, workspaceID, noteID, evidenceID string) (flows.LinkResult, error)
}

// SessionFlow runs the session-analysis pipeline.
type SessionFlow interface {
	Run(ctx context.Context, sessionID string) (flows.SessionResult, error)
}

// HuntFlow runs the evidence-hunt pipeline.
type HuntFlow interface {
	Run(ctx context.Context, workspaceID, decisionID, hypothesis string) (flows.HuntResult, error)
}

// DecayFlow runs one decay scan.
type DecayFlow interface {
	Run(ctx context.Context, workspaceID string) (agents.DecayReport, error)
}

// BriefFlow generates a decision brief.
type BriefFlow interface {
	Generate(ctx context.Context, decisionID string) (string, error)
}

// Pipelines bundles the triggerable agent pipelines.
type Pipelines struct {
	Link    LinkFlow
	Session SessionFlow
	Hunt    HuntFlow
	Decay   DecayFlow
	Brief   BriefFlow
}

// Server provides the HTTP API.
type Server struct {
	echo      *echo.Echo
	board     *board.Service
	store     *store.Store
	pipelines Pipelines
	logger    *zap.Logger
	config    *Config
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(b *board.Service, st *store.Store, pipelines Pipelines, logger *zap.Logger, cfg *Config) (*Server, error) {
	if b == nil || st == nil {
		return nil, fmt.Errorf("board service and store are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9180}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		board:     b,
		store:     st,
		pipelines: pipelines,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", s.requireAPIKey)

	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.POST("/sessions/:id/objectives", s.handleAddObjective)
	v1.POST("/sessions/:id/constraints", s.handleAddConstraint)
	v1.POST("/sessions/:id/notes", s.handleCreateNote)

	v1.POST("/evidence", s.handleAddEvidence)
	v1.DELETE("/evidence/:id", s.handleDeleteEvidence)

	v1.POST("/notes/:id/evidence/:evidenceID", s.handleLinkNoteEvidence)
	v1.DELETE("/notes/:id/evidence/:evidenceID", s.handleUnlinkNoteEvidence)

	v1.POST("/decisions", s.handleCreateDecision)
	v1.GET("/decisions/:id", s.handleGetDecision)
	v1.PUT("/decisions/:id/status", s.handleSetDecisionStatus)
	v1.POST("/decisions/:id/evidence/:evidenceID", s.handleLinkDecisionEvidence)
	v1.DELETE("/decisions/:id/evidence/:evidenceID", s.handleUnlinkDecisionEvidence)

	v1.GET("/alerts", s.handleListAlerts)

	v1.POST("/agents/evidence-link", s.handleAgentEvidenceLink)
	v1.POST("/agents/session-analysis", s.handleAgentSessionAnalysis)
	v1.POST("/agents/hunt", s.handleAgentHunt)
	v1.POST("/agents/decay-report", s.handleAgentDecayReport)
	v1.POST("/agents/brief", s.handleAgentBrief)
}

// requireAPIKey enforces bearer authentication when an API key is
// configured.
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.APIKey == "" {
			return next(c)
		}
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.APIKey)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
		}
		return next(c)
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if errors.Is(err, board.ErrInvalidStatus) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

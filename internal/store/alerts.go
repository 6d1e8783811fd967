package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAlert inserts an alert, filling ID, AlertType, and CreatedAt when
// unset. Metadata and related evidence IDs are stored as JSON.
func (s *Store) CreateAlert(ctx context.Context, a *Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AlertType == "" {
		a.AlertType = AlertInfo
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding alert metadata: %w", err)
	}
	ids := a.RelatedEvidenceIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding related evidence ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, workspace_id, agent_type, alert_type, title, content,
		 metadata, related_evidence_ids, related_decision_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.WorkspaceID, a.AgentType, a.AlertType, a.Title, a.Content,
		string(metaJSON), string(idsJSON), a.RelatedDecisionID, fmtTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// ListAlerts returns the workspace's most recent alerts, optionally
// filtered by agent type.
func (s *Store) ListAlerts(ctx context.Context, workspaceID, agentType string, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, workspace_id, agent_type, alert_type, title, content,
		 metadata, related_evidence_ids, related_decision_id, created_at
		 FROM alerts WHERE workspace_id = ?`
	args := []any{workspaceID}
	if agentType != "" {
		query += ` AND agent_type = ?`
		args = append(args, agentType)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		var metaJSON, idsJSON, createdAt string
		err := rows.Scan(&a.ID, &a.WorkspaceID, &a.AgentType, &a.AlertType, &a.Title, &a.Content,
			&metaJSON, &idsJSON, &a.RelatedDecisionID, &createdAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decoding alert metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &a.RelatedEvidenceIDs); err != nil {
			return nil, fmt.Errorf("decoding related evidence ids: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const decisionColumns = `id, workspace_id, title, hypothesis, status, gate_recommendation,
	evidence_count, evidence_strength, created_at`

// CreateDecision inserts a decision, filling ID, Status, GateRecommendation,
// and CreatedAt when unset.
func (s *Store) CreateDecision(ctx context.Context, d *Decision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = "park"
	}
	if d.GateRecommendation == "" {
		d.GateRecommendation = "park"
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (`+decisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.WorkspaceID, d.Title, d.Hypothesis, d.Status, d.GateRecommendation,
		d.EvidenceCount, d.EvidenceStrength, fmtTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	return nil
}

// GetDecision fetches a decision by ID.
func (s *Store) GetDecision(ctx context.Context, id string) (Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE id = ?`, id)
	d, err := scanDecision(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Decision{}, fmt.Errorf("%w: decision %s", ErrNotFound, id)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("fetching decision: %w", err)
	}
	return d, nil
}

// ListDecisionsByStatus returns the workspace's decisions in any of the
// given statuses, or all of them when statuses is empty.
func (s *Store) ListDecisionsByStatus(ctx context.Context, workspaceID string, statuses []string) ([]Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE workspace_id = ?`
	args := []any{workspaceID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDecisionStats writes the recomputed evidence count, aggregate
// strength, and gate recommendation. The user-set status is untouched.
func (s *Store) SetDecisionStats(ctx context.Context, id string, count int, strength float64, gate string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE decisions SET evidence_count = ?, evidence_strength = ?, gate_recommendation = ? WHERE id = ?`,
		count, strength, gate, id)
	if err != nil {
		return fmt.Errorf("updating decision stats: %w", err)
	}
	return requireRow(res, "decision", id)
}

// SetDecisionStatus records the user's commit/validate/park call.
func (s *Store) SetDecisionStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE decisions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating decision status: %w", err)
	}
	return requireRow(res, "decision", id)
}

// LinkDecisionEvidence attaches an evidence item to a decision. Linking
// the same pair again updates the weight.
func (s *Store) LinkDecisionEvidence(ctx context.Context, decisionID, evidenceID string, weight float64) error {
	if weight <= 0 {
		weight = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_evidence (decision_id, evidence_id, weight) VALUES (?, ?, ?)
		 ON CONFLICT (decision_id, evidence_id) DO UPDATE SET weight = excluded.weight`,
		decisionID, evidenceID, weight)
	if err != nil {
		return fmt.Errorf("linking decision evidence: %w", err)
	}
	return nil
}

// UnlinkDecisionEvidence detaches an evidence item from a decision.
func (s *Store) UnlinkDecisionEvidence(ctx context.Context, decisionID, evidenceID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM decision_evidence WHERE decision_id = ? AND evidence_id = ?`, decisionID, evidenceID)
	if err != nil {
		return fmt.Errorf("unlinking decision evidence: %w", err)
	}
	return nil
}

// ListDecisionEvidence returns the evidence linked to a decision together
// with each link's weight.
func (s *Store) ListDecisionEvidence(ctx context.Context, decisionID string) ([]LinkedEvidence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixColumns("e", evidenceColumns)+`, de.weight
		 FROM evidence e JOIN decision_evidence de ON de.evidence_id = e.id
		 WHERE de.decision_id = ? ORDER BY e.created_at`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("listing decision evidence: %w", err)
	}
	defer rows.Close()

	var out []LinkedEvidence
	for rows.Next() {
		var le LinkedEvidence
		var observedAt sql.NullString
		var createdAt string
		err := rows.Scan(&le.ID, &le.WorkspaceID, &le.Title, &le.Content, &le.SourceSystem, &le.Sentiment, &le.Segment,
			&le.HasDirectVoice, &le.BaseStrength, &le.SourceWeight, &le.ComputedStrength, &observedAt, &createdAt,
			&le.Weight)
		if err != nil {
			return nil, err
		}
		if observedAt.Valid {
			le.ObservedAt = parseTime(observedAt.String)
		}
		le.CreatedAt = parseTime(createdAt)
		out = append(out, le)
	}
	return out, rows.Err()
}

// DecisionsForEvidence returns the IDs of decisions linked to an evidence
// item.
func (s *Store) DecisionsForEvidence(ctx context.Context, evidenceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT decision_id FROM decision_evidence WHERE evidence_id = ?`, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("listing decisions for evidence: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanDecision(scan func(dest ...any) error) (Decision, error) {
	var d Decision
	var createdAt string
	err := scan(&d.ID, &d.WorkspaceID, &d.Title, &d.Hypothesis, &d.Status, &d.GateRecommendation,
		&d.EvidenceCount, &d.EvidenceStrength, &createdAt)
	if err != nil {
		return Decision{}, err
	}
	d.CreatedAt = parseTime(createdAt)
	return d, nil
}

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

const evidenceColumns = `id, workspace_id, title, content, source_system, sentiment, segment,
	has_direct_voice, base_strength, source_weight, computed_strength, observed_at, created_at`

// CreateEvidence inserts an evidence item, filling ID, defaults, and
// CreatedAt when unset.
func (s *Store) CreateEvidence(ctx context.Context, e *Evidence) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Sentiment == "" {
		e.Sentiment = "neutral"
	}
	if e.BaseStrength == 0 {
		e.BaseStrength = 50
	}
	if e.SourceWeight == 0 {
		e.SourceWeight = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var observedAt any
	if !e.ObservedAt.IsZero() {
		observedAt = fmtTime(e.ObservedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence (`+evidenceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkspaceID, e.Title, e.Content, e.SourceSystem, e.Sentiment, e.Segment,
		e.HasDirectVoice, e.BaseStrength, e.SourceWeight, e.ComputedStrength, observedAt, fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting evidence: %w", err)
	}
	return nil
}

// GetEvidence fetches an evidence item by ID.
func (s *Store) GetEvidence(ctx context.Context, id string) (Evidence, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = ?`, id)
	e, err := scanEvidence(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Evidence{}, fmt.Errorf("%w: evidence %s", ErrNotFound, id)
	}
	if err != nil {
		return Evidence{}, fmt.Errorf("fetching evidence: %w", err)
	}
	return e, nil
}

// ListEvidenceByIDs fetches the given evidence items; missing IDs are
// silently skipped.
func (s *Store) ListEvidenceByIDs(ctx context.Context, ids []string) ([]Evidence, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + evidenceColumns + ` FROM evidence WHERE id IN (?` +
		strings.Repeat(", ?", len(ids)-1) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing evidence: %w", err)
	}
	defer rows.Close()
	return scanEvidenceRows(rows)
}

// SetEvidenceSegment records the classified customer segment.
func (s *Store) SetEvidenceSegment(ctx context.Context, id, segment string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE evidence SET segment = ? WHERE id = ?`, segment, id)
	if err != nil {
		return fmt.Errorf("updating evidence segment: %w", err)
	}
	return requireRow(res, "evidence", id)
}

// SetEvidenceVoice records whether the item contains direct customer voice.
func (s *Store) SetEvidenceVoice(ctx context.Context, id string, hasVoice bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE evidence SET has_direct_voice = ? WHERE id = ?`, hasVoice, id)
	if err != nil {
		return fmt.Errorf("updating evidence voice: %w", err)
	}
	return requireRow(res, "evidence", id)
}

// SetEvidenceComputedStrength records the refreshed strength score.
func (s *Store) SetEvidenceComputedStrength(ctx context.Context, id string, strength float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE evidence SET computed_strength = ? WHERE id = ?`, strength, id)
	if err != nil {
		return fmt.Errorf("updating evidence strength: %w", err)
	}
	return requireRow(res, "evidence", id)
}

// DeleteEvidence removes an evidence item and all of its note and
// decision links.
func (s *Store) DeleteEvidence(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_evidence WHERE evidence_id = ?`, id); err != nil {
		return fmt.Errorf("deleting note links: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sticky_notes SET has_evidence = EXISTS(SELECT 1 FROM note_evidence WHERE note_id = sticky_notes.id)`); err != nil {
		return fmt.Errorf("refreshing note markers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decision_evidence WHERE evidence_id = ?`, id); err != nil {
		return fmt.Errorf("deleting decision links: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting evidence: %w", err)
	}
	if err := requireRow(res, "evidence", id); err != nil {
		return err
	}
	return tx.Commit()
}

// LinkNoteEvidence attaches an evidence item to a note and marks the note.
func (s *Store) LinkNoteEvidence(ctx context.Context, noteID, evidenceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO note_evidence (note_id, evidence_id) VALUES (?, ?)`, noteID, evidenceID); err != nil {
		return fmt.Errorf("linking note evidence: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sticky_notes SET has_evidence = 1 WHERE id = ?`, noteID); err != nil {
		return fmt.Errorf("marking note: %w", err)
	}
	return tx.Commit()
}

// UnlinkNoteEvidence detaches an evidence item from a note, clearing the
// note's marker when it was the last link.
func (s *Store) UnlinkNoteEvidence(ctx context.Context, noteID, evidenceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM note_evidence WHERE note_id = ? AND evidence_id = ?`, noteID, evidenceID); err != nil {
		return fmt.Errorf("unlinking note evidence: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sticky_notes SET has_evidence = (SELECT COUNT(*) FROM note_evidence WHERE note_id = ?) > 0
		 WHERE id = ?`, noteID, noteID); err != nil {
		return fmt.Errorf("marking note: %w", err)
	}
	return tx.Commit()
}

// ListNoteEvidence returns the evidence items linked to a note.
func (s *Store) ListNoteEvidence(ctx context.Context, noteID string) ([]Evidence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixColumns("e", evidenceColumns)+`
		 FROM evidence e JOIN note_evidence ne ON ne.evidence_id = e.id
		 WHERE ne.note_id = ? ORDER BY e.created_at`, noteID)
	if err != nil {
		return nil, fmt.Errorf("listing note evidence: %w", err)
	}
	defer rows.Close()
	return scanEvidenceRows(rows)
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanEvidence(scan func(dest ...any) error) (Evidence, error) {
	var e Evidence
	var observedAt sql.NullString
	var createdAt string
	err := scan(&e.ID, &e.WorkspaceID, &e.Title, &e.Content, &e.SourceSystem, &e.Sentiment, &e.Segment,
		&e.HasDirectVoice, &e.BaseStrength, &e.SourceWeight, &e.ComputedStrength, &observedAt, &createdAt)
	if err != nil {
		return Evidence{}, err
	}
	if observedAt.Valid {
		e.ObservedAt = parseTime(observedAt.String)
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func scanEvidenceRows(rows *sql.Rows) ([]Evidence, error) {
	var out []Evidence
	for rows.Next() {
		e, err := scanEvidence(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

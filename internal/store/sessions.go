package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession inserts a session, filling ID, Status, and CreatedAt when
// unset.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = "active"
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, workspace_id, title, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.WorkspaceID, sess.Title, sess.Status, fmtTime(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession fetches a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, title, status, created_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.WorkspaceID, &sess.Title, &sess.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("fetching session: %w", err)
	}
	sess.CreatedAt = parseTime(createdAt)
	return sess, nil
}

// SetSessionStatus updates a session's status.
func (s *Store) SetSessionStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating session status: %w", err)
	}
	return requireRow(res, "session", id)
}

// AddObjective appends an objective to a session.
func (s *Store) AddObjective(ctx context.Context, obj *Objective) error {
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	if obj.OrderIndex < 0 {
		row := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(order_index) + 1, 0) FROM session_objectives WHERE session_id = ?`, obj.SessionID)
		if err := row.Scan(&obj.OrderIndex); err != nil {
			return fmt.Errorf("computing objective order: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_objectives (id, session_id, content, order_index) VALUES (?, ?, ?, ?)`,
		obj.ID, obj.SessionID, obj.Content, obj.OrderIndex)
	if err != nil {
		return fmt.Errorf("inserting objective: %w", err)
	}
	return nil
}

// ListObjectives returns a session's objectives in display order.
func (s *Store) ListObjectives(ctx context.Context, sessionID string) ([]Objective, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, content, order_index FROM session_objectives
		 WHERE session_id = ? ORDER BY order_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing objectives: %w", err)
	}
	defer rows.Close()

	var out []Objective
	for rows.Next() {
		var o Objective
		if err := rows.Scan(&o.ID, &o.SessionID, &o.Content, &o.OrderIndex); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// AddConstraint attaches a constraint to a session.
func (s *Store) AddConstraint(ctx context.Context, c *Constraint) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_constraints (id, session_id, type, label, value) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.Type, c.Label, c.Value)
	if err != nil {
		return fmt.Errorf("inserting constraint: %w", err)
	}
	return nil
}

// ListConstraints returns a session's constraints.
func (s *Store) ListConstraints(ctx context.Context, sessionID string) ([]Constraint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, type, label, value FROM session_constraints WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing constraints: %w", err)
	}
	defer rows.Close()

	var out []Constraint
	for rows.Next() {
		var c Constraint
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Type, &c.Label, &c.Value); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateNote inserts a sticky note, filling ID, Kind, and CreatedAt when
// unset.
func (s *Store) CreateNote(ctx context.Context, n *StickyNote) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Kind == "" {
		n.Kind = NoteGeneral
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sticky_notes (id, session_id, workspace_id, kind, content, has_evidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.SessionID, n.WorkspaceID, n.Kind, n.Content, n.HasEvidence, fmtTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}
	return nil
}

// GetNote fetches a sticky note by ID.
func (s *Store) GetNote(ctx context.Context, id string) (StickyNote, error) {
	var n StickyNote
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, workspace_id, kind, content, has_evidence, created_at
		 FROM sticky_notes WHERE id = ?`, id).
		Scan(&n.ID, &n.SessionID, &n.WorkspaceID, &n.Kind, &n.Content, &n.HasEvidence, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StickyNote{}, fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	if err != nil {
		return StickyNote{}, fmt.Errorf("fetching note: %w", err)
	}
	n.CreatedAt = parseTime(createdAt)
	return n, nil
}

// UpdateNoteContent replaces a note's text.
func (s *Store) UpdateNoteContent(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sticky_notes SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	return requireRow(res, "note", id)
}

// DeleteNote removes a note and its evidence links.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_evidence WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("deleting note links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sticky_notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return tx.Commit()
}

// ListSessionNotes returns a session's notes in creation order.
func (s *Store) ListSessionNotes(ctx context.Context, sessionID string) ([]StickyNote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, workspace_id, kind, content, has_evidence, created_at
		 FROM sticky_notes WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ListNotesWithEvidence returns the workspace's notes that have at least
// one linked evidence item.
func (s *Store) ListNotesWithEvidence(ctx context.Context, workspaceID string) ([]StickyNote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, workspace_id, kind, content, has_evidence, created_at
		 FROM sticky_notes WHERE workspace_id = ? AND has_evidence = 1 ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing notes with evidence: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// SetNoteHasEvidence flips the note's evidence marker.
func (s *Store) SetNoteHasEvidence(ctx context.Context, id string, has bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sticky_notes SET has_evidence = ? WHERE id = ?`, has, id)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	return requireRow(res, "note", id)
}

func scanNotes(rows *sql.Rows) ([]StickyNote, error) {
	var out []StickyNote
	for rows.Next() {
		var n StickyNote
		var createdAt string
		if err := rows.Scan(&n.ID, &n.SessionID, &n.WorkspaceID, &n.Kind, &n.Content, &n.HasEvidence, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return nil
}

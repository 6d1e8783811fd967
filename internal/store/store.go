// Package store persists the discovery board (sessions, sticky notes,
// evidence, decisions, links, alerts) in SQLite via the pure-Go modernc
// driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// openDB is a variable so tests can substitute the opener.
var openDB = sql.Open

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the relational repository for the discovery board.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite allows one writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger.Named("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("store opened", zap.String("path", path))
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_objectives (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	content TEXT NOT NULL,
	order_index INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session_constraints (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	type TEXT NOT NULL,
	label TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sticky_notes (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	workspace_id TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'general',
	content TEXT NOT NULL,
	has_evidence INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS evidence (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	source_system TEXT NOT NULL,
	sentiment TEXT NOT NULL DEFAULT 'neutral',
	segment TEXT NOT NULL DEFAULT '',
	has_direct_voice INTEGER NOT NULL DEFAULT 0,
	base_strength REAL NOT NULL DEFAULT 50,
	source_weight REAL NOT NULL DEFAULT 1,
	computed_strength REAL NOT NULL DEFAULT 0,
	observed_at TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	title TEXT NOT NULL,
	hypothesis TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'park',
	gate_recommendation TEXT NOT NULL DEFAULT 'park',
	evidence_count INTEGER NOT NULL DEFAULT 0,
	evidence_strength REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_evidence (
	decision_id TEXT NOT NULL REFERENCES decisions(id),
	evidence_id TEXT NOT NULL REFERENCES evidence(id),
	weight REAL NOT NULL DEFAULT 1,
	PRIMARY KEY (decision_id, evidence_id)
);

CREATE TABLE IF NOT EXISTS note_evidence (
	note_id TEXT NOT NULL REFERENCES sticky_notes(id),
	evidence_id TEXT NOT NULL REFERENCES evidence(id),
	PRIMARY KEY (note_id, evidence_id)
);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	related_evidence_ids TEXT NOT NULL DEFAULT '[]',
	related_decision_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_session ON sticky_notes(session_id);
CREATE INDEX IF NOT EXISTS idx_evidence_workspace ON evidence(workspace_id);
CREATE INDEX IF NOT EXISTS idx_decisions_workspace ON decisions(workspace_id, status);
CREATE INDEX IF NOT EXISTS idx_alerts_workspace ON alerts(workspace_id, agent_type);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Workspaces returns the distinct workspace IDs that have decisions or
// evidence, for scheduled per-workspace runs.
func (s *Store) Workspaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id FROM decisions
		UNION
		SELECT workspace_id FROM evidence
		ORDER BY workspace_id`)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
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

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

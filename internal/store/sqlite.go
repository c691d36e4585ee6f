// Package store provides SQLite-backed persistence for clawdeck state.
//
// The store is the single writer for all mutable records (threads, brain
// dumps, projects): every mutation goes through one serialized connection so
// the background sweeps and the interactive path never race on a record.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PlaceholderThreadName is the sentinel name a thread carries until a real
// title has been generated for it.
const PlaceholderThreadName = "New thread"

// Store is the main persistence layer for clawdeck.
type Store struct {
	db *sql.DB
}

// New creates a new Store, initializing the database if needed.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Single writer discipline: one connection, mutations serialize on it.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		color       TEXT,
		agent_id    TEXT NOT NULL DEFAULT 'main',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS threads (
		id               TEXT PRIMARY KEY,
		project_id       TEXT REFERENCES projects(id) ON DELETE CASCADE,
		name             TEXT NOT NULL,
		session_id       TEXT UNIQUE NOT NULL,
		agent_id         TEXT NOT NULL DEFAULT 'main',
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_message_at  DATETIME,
		title_updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS brain_dumps (
		id             TEXT PRIMARY KEY,
		content        TEXT NOT NULL,
		project_id     TEXT REFERENCES projects(id) ON DELETE SET NULL,
		status         TEXT NOT NULL DEFAULT 'open',
		proactive      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		followed_up_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS kanban_items (
		id          TEXT PRIMARY KEY,
		project_id  TEXT REFERENCES projects(id) ON DELETE SET NULL,
		source_type TEXT NOT NULL DEFAULT 'manual',
		source_id   TEXT,
		title       TEXT NOT NULL,
		description TEXT,
		col         TEXT NOT NULL DEFAULT 'backlog',
		position    INTEGER NOT NULL DEFAULT 0,
		status      TEXT NOT NULL DEFAULT 'active',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_threads_project ON threads(project_id);
	CREATE INDEX IF NOT EXISTS idx_threads_session ON threads(session_id);
	CREATE INDEX IF NOT EXISTS idx_brain_dumps_status ON brain_dumps(status);
	CREATE INDEX IF NOT EXISTS idx_brain_dumps_proactive ON brain_dumps(proactive);
	CREATE INDEX IF NOT EXISTS idx_kanban_project ON kanban_items(project_id);
	CREATE INDEX IF NOT EXISTS idx_kanban_col ON kanban_items(col);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Project groups threads under a shared agent and color.
type Project struct {
	ID          string
	Name        string
	Description *string
	Color       *string
	AgentID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Thread is a named handle onto one agent session.
type Thread struct {
	ID             string
	ProjectID      *string
	Name           string
	SessionID      string
	AgentID        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastMessageAt  *time.Time
	TitleUpdatedAt *time.Time
}

// HasPlaceholderName reports whether the thread still carries the sentinel
// name assigned at creation.
func (t *Thread) HasPlaceholderName() bool {
	return t.Name == PlaceholderThreadName
}

// BrainDumpStatus is the lifecycle state of a captured note.
type BrainDumpStatus string

const (
	BrainDumpOpen       BrainDumpStatus = "open"
	BrainDumpInProgress BrainDumpStatus = "in_progress"
	BrainDumpDone       BrainDumpStatus = "done"
)

// BrainDump is a captured note, optionally flagged for proactive follow-up.
type BrainDump struct {
	ID           string
	Content      string
	ProjectID    *string
	Status       BrainDumpStatus
	Proactive    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FollowedUpAt *time.Time
}

// KanbanColumn identifies a board column.
type KanbanColumn string

const (
	KanbanBacklog    KanbanColumn = "backlog"
	KanbanThisWeek   KanbanColumn = "this_week"
	KanbanInProgress KanbanColumn = "in_progress"
	KanbanDone       KanbanColumn = "done"
)

// KanbanItem is a card on the planning board.
type KanbanItem struct {
	ID          string
	ProjectID   *string
	SourceType  string // manual | brain_dump | research
	SourceID    *string
	Title       string
	Description *string
	Column      KanbanColumn
	Position    int
	Status      string // active | archived
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

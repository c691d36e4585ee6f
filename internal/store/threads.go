package store

import (
	"database/sql"
	"time"
)

const threadColumns = `id, project_id, name, session_id, agent_id, created_at, updated_at, last_message_at, title_updated_at`

// CreateThread inserts a new thread.
func (s *Store) CreateThread(t *Thread) error {
	query := `INSERT INTO threads (id, project_id, name, session_id, agent_id, created_at, updated_at, last_message_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.Exec(query, t.ID, t.ProjectID, t.Name, t.SessionID, t.AgentID, now, now, t.LastMessageAt)
	return err
}

// GetThread retrieves a thread by ID.
func (s *Store) GetThread(id string) (*Thread, error) {
	row := s.db.QueryRow(`SELECT `+threadColumns+` FROM threads WHERE id = ?`, id)
	return scanThread(row)
}

// GetThreadBySession retrieves the thread owning a session, if any.
func (s *Store) GetThreadBySession(sessionID string) (*Thread, error) {
	row := s.db.QueryRow(`SELECT `+threadColumns+` FROM threads WHERE session_id = ?`, sessionID)
	return scanThread(row)
}

// ListThreads retrieves threads, filtered by project when projectID is
// non-nil. Unfiled threads (no project) are returned for a nil filter.
func (s *Store) ListThreads(projectID *string) ([]*Thread, error) {
	var rows *sql.Rows
	var err error
	if projectID != nil {
		rows, err = s.db.Query(`SELECT `+threadColumns+` FROM threads WHERE project_id = ?
		                        ORDER BY last_message_at DESC, updated_at DESC`, *projectID)
	} else {
		rows, err = s.db.Query(`SELECT ` + threadColumns + ` FROM threads WHERE project_id IS NULL
		                        ORDER BY last_message_at DESC, updated_at DESC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.SessionID, &t.AgentID,
			&t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt, &t.TitleUpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, &t)
	}
	return threads, rows.Err()
}

// ListAllThreads retrieves every thread, most recently active first.
func (s *Store) ListAllThreads() ([]*Thread, error) {
	rows, err := s.db.Query(`SELECT ` + threadColumns + ` FROM threads
	                        ORDER BY last_message_at DESC, updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.SessionID, &t.AgentID,
			&t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt, &t.TitleUpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, &t)
	}
	return threads, rows.Err()
}

// RenameThread sets a thread's name and stamps title_updated_at to the same
// logical time, keeping the staleness comparison in ThreadsNeedingTitleRefresh
// coherent.
func (s *Store) RenameThread(id, name string) error {
	now := time.Now()
	query := `UPDATE threads SET name = ?, title_updated_at = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, name, now, now, id)
	return err
}

// TouchThread advances last_message_at for a thread.
func (s *Store) TouchThread(id string, at time.Time) error {
	query := `UPDATE threads SET last_message_at = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, at, at, id)
	return err
}

// ThreadsNeedingTitleRefresh returns threads whose conversation has advanced
// past their last title update. Threads that never received a message are
// excluded.
func (s *Store) ThreadsNeedingTitleRefresh() ([]*Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads
	          WHERE last_message_at IS NOT NULL
	            AND (title_updated_at IS NULL OR last_message_at > title_updated_at)`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.SessionID, &t.AgentID,
			&t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt, &t.TitleUpdatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, &t)
	}
	return threads, rows.Err()
}

// DeleteThread removes a thread.
func (s *Store) DeleteThread(id string) error {
	_, err := s.db.Exec(`DELETE FROM threads WHERE id = ?`, id)
	return err
}

func scanThread(row *sql.Row) (*Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.SessionID, &t.AgentID,
		&t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt, &t.TitleUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

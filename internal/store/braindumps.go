package store

import (
	"time"
)

const brainDumpColumns = `id, content, project_id, status, proactive, created_at, updated_at, followed_up_at`

// CreateBrainDump inserts a new brain dump.
func (s *Store) CreateBrainDump(d *BrainDump) error {
	query := `INSERT INTO brain_dumps (id, content, project_id, status, proactive, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = BrainDumpOpen
	}
	_, err := s.db.Exec(query, d.ID, d.Content, d.ProjectID, d.Status, d.Proactive, now, now)
	return err
}

// ListBrainDumps retrieves all brain dumps, newest first.
func (s *Store) ListBrainDumps() ([]*BrainDump, error) {
	rows, err := s.db.Query(`SELECT ` + brainDumpColumns + ` FROM brain_dumps ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dumps []*BrainDump
	for rows.Next() {
		var d BrainDump
		if err := rows.Scan(&d.ID, &d.Content, &d.ProjectID, &d.Status, &d.Proactive,
			&d.CreatedAt, &d.UpdatedAt, &d.FollowedUpAt); err != nil {
			return nil, err
		}
		dumps = append(dumps, &d)
	}
	return dumps, rows.Err()
}

// ListProactiveOpenBrainDumps returns the follow-up sweep's candidate set:
// items flagged proactive that are still open and have never been followed up.
func (s *Store) ListProactiveOpenBrainDumps() ([]*BrainDump, error) {
	query := `SELECT ` + brainDumpColumns + ` FROM brain_dumps
	          WHERE proactive = TRUE AND status = 'open' AND followed_up_at IS NULL
	          ORDER BY created_at ASC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dumps []*BrainDump
	for rows.Next() {
		var d BrainDump
		if err := rows.Scan(&d.ID, &d.Content, &d.ProjectID, &d.Status, &d.Proactive,
			&d.CreatedAt, &d.UpdatedAt, &d.FollowedUpAt); err != nil {
			return nil, err
		}
		dumps = append(dumps, &d)
	}
	return dumps, rows.Err()
}

// UpdateBrainDumpStatus sets the lifecycle status of a brain dump.
func (s *Store) UpdateBrainDumpStatus(id string, status BrainDumpStatus) error {
	query := `UPDATE brain_dumps SET status = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, status, time.Now(), id)
	return err
}

// SetBrainDumpProactive toggles the proactive flag on a brain dump.
func (s *Store) SetBrainDumpProactive(id string, proactive bool) error {
	query := `UPDATE brain_dumps SET proactive = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, proactive, time.Now(), id)
	return err
}

// ClaimBrainDumpFollowUp marks an item followed up, moving it to in_progress.
// The write is conditional on the item still being an open, proactive,
// never-followed-up item, so concurrent sweep passes claim each item at most
// once. Returns true if this call won the claim.
func (s *Store) ClaimBrainDumpFollowUp(id string, at time.Time) (bool, error) {
	query := `UPDATE brain_dumps SET status = 'in_progress', followed_up_at = ?, updated_at = ?
	          WHERE id = ? AND proactive = TRUE AND status = 'open' AND followed_up_at IS NULL`
	res, err := s.db.Exec(query, at, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteBrainDump removes a brain dump.
func (s *Store) DeleteBrainDump(id string) error {
	_, err := s.db.Exec(`DELETE FROM brain_dumps WHERE id = ?`, id)
	return err
}

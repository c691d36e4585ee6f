package store

import (
	"database/sql"
	"time"
)

const projectColumns = `id, name, description, color, agent_id, created_at, updated_at`

// CreateProject inserts a new project.
func (s *Store) CreateProject(p *Project) error {
	query := `INSERT INTO projects (id, name, description, color, agent_id, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.Exec(query, p.ID, p.Name, p.Description, p.Color, p.AgentID, now, now)
	return err
}

// ListProjects retrieves all projects, most recently updated first.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.AgentID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(id string) (*Project, error) {
	row := s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)

	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.AgentID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject updates a project's user-editable fields.
func (s *Store) UpdateProject(id, name string, description, color *string) error {
	query := `UPDATE projects SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, name, description, color, time.Now(), id)
	return err
}

// DeleteProject removes a project and cascades to its threads.
func (s *Store) DeleteProject(id string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	return err
}

package store

import (
	"database/sql"
	"time"
)

const kanbanColumns = `id, project_id, source_type, source_id, title, description, col, position, status, created_at, updated_at`

// CreateKanbanItem inserts a new board card.
func (s *Store) CreateKanbanItem(item *KanbanItem) error {
	query := `INSERT INTO kanban_items (id, project_id, source_type, source_id, title, description, col, position, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Column == "" {
		item.Column = KanbanBacklog
	}
	if item.Status == "" {
		item.Status = "active"
	}
	_, err := s.db.Exec(query, item.ID, item.ProjectID, item.SourceType, item.SourceID,
		item.Title, item.Description, item.Column, item.Position, item.Status, now, now)
	return err
}

// ListKanbanItems retrieves active cards, filtered by project when projectID
// is non-nil, ordered by column and position.
func (s *Store) ListKanbanItems(projectID *string) ([]*KanbanItem, error) {
	var rows *sql.Rows
	var err error
	if projectID != nil {
		rows, err = s.db.Query(`SELECT `+kanbanColumns+` FROM kanban_items
		                        WHERE project_id = ? AND status = 'active' ORDER BY col, position`, *projectID)
	} else {
		rows, err = s.db.Query(`SELECT ` + kanbanColumns + ` FROM kanban_items
		                        WHERE status = 'active' ORDER BY col, position`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*KanbanItem
	for rows.Next() {
		var item KanbanItem
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.SourceType, &item.SourceID,
			&item.Title, &item.Description, &item.Column, &item.Position, &item.Status,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// KanbanItemUpdate carries the optional fields of an item update; nil fields
// are left untouched.
type KanbanItemUpdate struct {
	Title       *string
	Description *string
	Column      *KanbanColumn
	Position    *int
	Status      *string
}

// UpdateKanbanItem applies a partial update to a card.
func (s *Store) UpdateKanbanItem(id string, upd KanbanItemUpdate) error {
	query := `UPDATE kanban_items SET
	            title       = COALESCE(?, title),
	            description = COALESCE(?, description),
	            col         = COALESCE(?, col),
	            position    = COALESCE(?, position),
	            status      = COALESCE(?, status),
	            updated_at  = ?
	          WHERE id = ?`
	_, err := s.db.Exec(query, upd.Title, upd.Description, upd.Column, upd.Position, upd.Status, time.Now(), id)
	return err
}

// DeleteKanbanItem removes a card.
func (s *Store) DeleteKanbanItem(id string) error {
	_, err := s.db.Exec(`DELETE FROM kanban_items WHERE id = ?`, id)
	return err
}

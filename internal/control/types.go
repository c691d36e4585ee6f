package control

import (
	"time"

	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

// ProjectInfo represents a project for API responses.
type ProjectInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
	AgentID     string    `json:"agent_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ThreadInfo represents a thread for API responses.
type ThreadInfo struct {
	ID             string     `json:"id"`
	ProjectID      *string    `json:"project_id,omitempty"`
	Name           string     `json:"name"`
	SessionID      string     `json:"session_id"`
	AgentID        string     `json:"agent_id"`
	CreatedAt      time.Time  `json:"created_at"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	TitleUpdatedAt *time.Time `json:"title_updated_at,omitempty"`
}

// BrainDumpInfo represents a brain dump for API responses.
type BrainDumpInfo struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	ProjectID    *string    `json:"project_id,omitempty"`
	Status       string     `json:"status"`
	Proactive    bool       `json:"proactive"`
	CreatedAt    time.Time  `json:"created_at"`
	FollowedUpAt *time.Time `json:"followed_up_at,omitempty"`
}

// KanbanItemInfo represents a board card for API responses.
type KanbanItemInfo struct {
	ID          string  `json:"id"`
	ProjectID   *string `json:"project_id,omitempty"`
	SourceType  string  `json:"source_type"`
	SourceID    *string `json:"source_id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Column      string  `json:"column"`
	Position    int     `json:"position"`
	Status      string  `json:"status"`
}

// SessionRequest identifies one session for watch/stop/load calls.
type SessionRequest struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}

// SendMessageRequest carries one user message into a thread's session.
type SendMessageRequest struct {
	ThreadID  string `json:"thread_id"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// ConversationResponse returns the current reconciled view of a session.
type ConversationResponse struct {
	SessionID string             `json:"session_id"`
	Entries   []sessionlog.Entry `json:"entries"`
}

// CreateProjectRequest creates a project.
type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	AgentID     string  `json:"agent_id,omitempty"`
}

// UpdateProjectRequest updates a project; nil fields are left untouched.
type UpdateProjectRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// ListThreadsRequest filters threads by project. A nil project with All
// unset lists unfiled threads; All lists everything.
type ListThreadsRequest struct {
	ProjectID *string `json:"project_id,omitempty"`
	All       bool    `json:"all,omitempty"`
}

// CreateThreadRequest creates a thread with a fresh session.
type CreateThreadRequest struct {
	ProjectID *string `json:"project_id,omitempty"`
	AgentID   string  `json:"agent_id,omitempty"`
}

// RenameThreadRequest renames a thread.
type RenameThreadRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateBrainDumpRequest captures a note.
type CreateBrainDumpRequest struct {
	Content   string  `json:"content"`
	ProjectID *string `json:"project_id,omitempty"`
}

// UpdateBrainDumpStatusRequest moves a note through its lifecycle.
type UpdateBrainDumpStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SetBrainDumpProactiveRequest flags a note for autonomous follow-up.
type SetBrainDumpProactiveRequest struct {
	ID        string `json:"id"`
	Proactive bool   `json:"proactive"`
}

// CreateKanbanItemRequest adds a card to the board.
type CreateKanbanItemRequest struct {
	ProjectID   *string `json:"project_id,omitempty"`
	SourceType  string  `json:"source_type,omitempty"`
	SourceID    *string `json:"source_id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Column      string  `json:"column,omitempty"`
	Position    int     `json:"position,omitempty"`
}

// UpdateKanbanItemRequest applies a partial card update.
type UpdateKanbanItemRequest struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Column      *string `json:"column,omitempty"`
	Position    *int    `json:"position,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// SettingRequest reads or writes one settings key.
type SettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// SettingInfo is the result of a get_setting call.
type SettingInfo struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// IDRequest addresses an entity by id for get/delete calls.
type IDRequest struct {
	ID string `json:"id"`
}

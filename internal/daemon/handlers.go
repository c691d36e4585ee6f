package daemon

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clawdeck/clawdeck/internal/control"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
	"github.com/clawdeck/clawdeck/internal/store"
)

func (d *Daemon) registerHandlers() {
	// Interactive path
	d.server.Handle("watch_session", d.handleWatchSession)
	d.server.Handle("stop_watching", d.handleStopWatching)
	d.server.Handle("send_message", d.handleSendMessage)
	d.server.Handle("load_session", d.handleLoadSession)

	// Projects
	d.server.Handle("list_projects", d.handleListProjects)
	d.server.Handle("create_project", d.handleCreateProject)
	d.server.Handle("update_project", d.handleUpdateProject)
	d.server.Handle("delete_project", d.handleDeleteProject)

	// Threads
	d.server.Handle("list_threads", d.handleListThreads)
	d.server.Handle("get_thread", d.handleGetThread)
	d.server.Handle("create_thread", d.handleCreateThread)
	d.server.Handle("rename_thread", d.handleRenameThread)
	d.server.Handle("delete_thread", d.handleDeleteThread)

	// Brain dumps
	d.server.Handle("list_brain_dumps", d.handleListBrainDumps)
	d.server.Handle("create_brain_dump", d.handleCreateBrainDump)
	d.server.Handle("update_brain_dump_status", d.handleUpdateBrainDumpStatus)
	d.server.Handle("set_brain_dump_proactive", d.handleSetBrainDumpProactive)
	d.server.Handle("convert_brain_dump", d.handleConvertBrainDump)
	d.server.Handle("delete_brain_dump", d.handleDeleteBrainDump)

	// Kanban
	d.server.Handle("list_kanban_items", d.handleListKanbanItems)
	d.server.Handle("create_kanban_item", d.handleCreateKanbanItem)
	d.server.Handle("update_kanban_item", d.handleUpdateKanbanItem)
	d.server.Handle("delete_kanban_item", d.handleDeleteKanbanItem)

	// Settings
	d.server.Handle("get_setting", d.handleGetSetting)
	d.server.Handle("set_setting", d.handleSetSetting)
}

func decode[T any](params json.RawMessage) (T, error) {
	var req T
	if len(params) == 0 {
		return req, fmt.Errorf("missing params")
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return req, fmt.Errorf("invalid params: %w", err)
	}
	return req, nil
}

func (d *Daemon) defaultAgent(agentID string) string {
	if agentID != "" {
		return agentID
	}
	return d.config.Agent.DefaultID
}

// handleWatchSession opens a thread for interactive use: one UI slot, so
// any watch for a different session is cancelled and awaited first.
func (d *Daemon) handleWatchSession(params json.RawMessage) (any, error) {
	req, err := decode[control.SessionRequest](params)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	thread, err := d.store.GetThreadBySession(req.SessionID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("no thread for session: %s", req.SessionID)
	}

	ref := sessionlog.Ref{AgentID: d.defaultAgent(req.AgentID), SessionID: req.SessionID}
	sess, err := d.reconciler.Open(ref, thread.ID)
	if err != nil {
		return nil, err
	}

	d.watches.StopAll()
	d.watches.Watch(ref, sess.Inflight, sess.View)

	return control.ConversationResponse{SessionID: req.SessionID, Entries: sess.View.Entries()}, nil
}

func (d *Daemon) handleStopWatching(params json.RawMessage) (any, error) {
	req, err := decode[control.SessionRequest](params)
	if err != nil {
		return nil, err
	}
	d.watches.Stop(req.SessionID)
	d.reconciler.Close(req.SessionID)
	return map[string]bool{"stopped": true}, nil
}

func (d *Daemon) handleSendMessage(params json.RawMessage) (any, error) {
	req, err := decode[control.SendMessageRequest](params)
	if err != nil {
		return nil, err
	}
	if req.ThreadID == "" || req.SessionID == "" {
		return nil, fmt.Errorf("thread_id and session_id are required")
	}

	ref := sessionlog.Ref{AgentID: d.defaultAgent(req.AgentID), SessionID: req.SessionID}
	sess, err := d.reconciler.Open(ref, req.ThreadID)
	if err != nil {
		return nil, err
	}

	if err := d.reconciler.Send(d.ctx, sess, req.Text); err != nil {
		return nil, err
	}
	return control.ConversationResponse{SessionID: req.SessionID, Entries: sess.View.Entries()}, nil
}

func (d *Daemon) handleLoadSession(params json.RawMessage) (any, error) {
	req, err := decode[control.SessionRequest](params)
	if err != nil {
		return nil, err
	}

	ref := sessionlog.Ref{AgentID: d.defaultAgent(req.AgentID), SessionID: req.SessionID}
	entries, _, err := d.reader.Read(ref)
	if err != nil && !errors.Is(err, sessionlog.ErrSourceUnavailable) {
		return nil, err
	}
	return control.ConversationResponse{SessionID: req.SessionID, Entries: entries}, nil
}

func (d *Daemon) handleListProjects(params json.RawMessage) (any, error) {
	projects, err := d.store.ListProjects()
	if err != nil {
		return nil, err
	}
	infos := make([]*control.ProjectInfo, 0, len(projects))
	for _, p := range projects {
		infos = append(infos, toProjectInfo(p))
	}
	return infos, nil
}

func (d *Daemon) handleCreateProject(params json.RawMessage) (any, error) {
	req, err := decode[control.CreateProjectRequest](params)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	p := &store.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		AgentID:     d.defaultAgent(req.AgentID),
	}
	if err := d.store.CreateProject(p); err != nil {
		return nil, err
	}
	return toProjectInfo(p), nil
}

func (d *Daemon) handleUpdateProject(params json.RawMessage) (any, error) {
	req, err := decode[control.UpdateProjectRequest](params)
	if err != nil {
		return nil, err
	}
	if err := d.store.UpdateProject(req.ID, req.Name, req.Description, req.Color); err != nil {
		return nil, err
	}
	return map[string]bool{"updated": true}, nil
}

func (d *Daemon) handleDeleteProject(params json.RawMessage) (any, error) {
	req, err := decode[control.IDRequest](params)
	if err != nil {
		return nil, err
	}
	if err := d.store.DeleteProject(req.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func (d *Daemon) handleListThreads(params json.RawMessage) (any, error) {
	var req control.ListThreadsRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	var threads []*store.Thread
	var err error
	if req.All && req.ProjectID == nil {
		threads, err = d.store.ListAllThreads()
	} else {
		threads, err = d.store.ListThreads(req.ProjectID)
	}
	if err != nil {
		return nil, err
	}
	infos := make([]*control.ThreadInfo, 0, len(threads))
	for _, th := range threads {
		infos = append(infos, toThreadInfo(th))
	}
	return infos, nil
}

func (d *Daemon) handleGetThread(params json.RawMessage) (any, error) {
	req, err := decode[control.IDRequest](params)
	if err != nil {
		return nil, err
	}
	th, err := d.store.GetThread(req.ID)
	if err != nil {
		return nil, err
	}
	if th == nil {
		return nil, fmt.Errorf("thread not found: %s", req.ID)
	}
	return toThreadInfo(th), nil
}

func (d *Daemon) handleCreateThread(params json.RawMessage) (any, error) {
	var req control.CreateThreadRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	th := &store.Thread{
		ID:        uuid.New().String(),
		ProjectID: req.ProjectID,
		Name:      store.PlaceholderThreadName,
		SessionID: uuid.New().String(),
		AgentID:   d.defaultAgent(req.AgentID),
	}
	if err := d.store.CreateThread(th); err != nil {
		return nil, err
	}
	return toThreadInfo(th), nil
}

func (d *Daemon) handleRenameThread(params json.RawMessage) (any, error) {
	req, err := decode[control.RenameThreadRequest](params)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := d.store.RenameThread(req.ID, req.Name); err != nil {
		return nil, err
	}
	return map[string]bool{"renamed": true}, nil
}

func (d *Daemon) handleDeleteThread(params json.RawMessage) (any, error) {
	req, err := decode[control.IDRequest](params)
	if err != nil {
		return nil, err
	}

	// Tear down any live interactive state first.
	if th, err := d.store.GetThread(req.ID); err == nil && th != nil {
		d.watches.Stop(th.SessionID)
		d.reconciler.Close(th.SessionID)
	}

	if err := d.store.DeleteThread(req.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func (d *Daemon) handleListBrainDumps(params json.RawMessage) (any, error) {
	dumps, err := d.store.ListBrainDumps()
	if err != nil {
		return nil, err
	}
	infos := make([]*control.BrainDumpInfo, 0, len(dumps))
	for _, dump := range dumps {
		infos = append(infos, toBrainDumpInfo(dump))
	}
	return infos, nil
}

func (d *Daemon) handleCreateBrainDump(params json.RawMessage) (any, error) {
	req, err := decode[control.CreateBrainDumpRequest](params)
	if err != nil {
		return nil, err
	}
	if req.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	dump := &store.BrainDump{
		ID:        uuid.New().String(),
		Content:   req.Content,
		ProjectID: req.ProjectID,
	}
	if err := d.store.CreateBrainDump(dump); err != nil {
		return nil, err
	}
	return toBrainDumpInfo(dump), nil
}

func (d *Daemon) handleUpdateBrainDumpStatus(params json.RawMessage) (any, error) {
	req, err := decode[control.UpdateBrainDumpStatusRequest](params)
	if err != nil {
		return nil, err
	}

	status := store.BrainDumpStatus(req.Status)
	switch status {
	case store.BrainDumpOpen, store.BrainDumpInProgress, store.BrainDumpDone:
	default:
		return nil, fmt.Errorf("invalid status: %s", req.Status)
	}

	if err := d.store.UpdateBrainDumpStatus(req.ID, status); err != nil {
		return nil, err
	}
	return map[string]bool{"updated": true}, nil
}

func (d *Daemon) handleSetBrainDumpProactive(params json.RawMessage) (any, error) {
	req, err := decode[control.SetBrainDumpProactiveRequest](params)
	if err != nil {
		return nil, err
	}
	if err := d.store.SetBrainDumpProactive(req.ID, req.Proactive); err != nil {
		return nil, err
	}
	return map[string]bool{"updated": true}, nil
}

// handleConvertBrainDump turns a captured note into a thread the user can
// pick up, marking the note in progress.
func (d *Daemon) handleConvertBrainDump(params json.RawMessage) (any, error) {
	req, err := decode[control.IDRequest](params)
	if err != nil {
		return nil, err
	}

	dumps, err := d.store.ListBrainDumps()
	if err != nil {
		return nil, err
	}
	var dump *store.BrainDump
	for _, candidate := range dumps {
		if candidate.ID == req.ID {
			dump = candidate
			break
		}
	}
	if dump == nil {
		return nil, fmt.Errorf("brain dump not found: %s", req.ID)
	}

	th := &store.Thread{
		ID:        uuid.New().String(),
		ProjectID: dump.ProjectID,
		Name:      store.PlaceholderThreadName,
		SessionID: uuid.New().String(),
		AgentID:   d.config.Agent.DefaultID,
	}
	if err := d.store.CreateThread(th); err != nil {
		return nil, err
	}
	if err := d.store.UpdateBrainDumpStatus(dump.ID, store.BrainDumpInProgress); err != nil {
		return nil, err
	}
	return toThreadInfo(th), nil
}

func (d *Daemon) handleDeleteBrainDump(params json.RawMessage) (any, error) {
	req, err := decode[control.IDRequest](params)
	if err != nil {
		return nil, err
	}
	if err := d.store.DeleteBrainDump(req.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func (d *Daemon) handleListKanbanItems(params json.RawMessage) (any, error) {
	var req control.ListThreadsRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	items, err := d.store.ListKanbanItems(req.ProjectID)
	if err != nil {
		return nil, err
	}
	infos := make([]*control.KanbanItemInfo, 0, len(items))
	for _, item := range items {
		infos = append(infos, toKanbanItemInfo(item))
	}
	return infos, nil
}

func (d *Daemon) handleCreateKanbanItem(params json.RawMessage) (any, error) {
	req, err := decode[control.CreateKanbanItemRequest](params)
	if err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = "manual"
	}

	item := &store.KanbanItem{
		ID:          uuid.New().String(),
		ProjectID:   req.ProjectID,
		SourceType:  sourceType,
		SourceID:    req.SourceID,
		Title:       req.Title,
		Description: req.Description,
		Column:      store.KanbanColumn(req.Column),
		Position:    req.Position,
	}
	if err := d.store.CreateKanbanItem(item); err != nil {
		return nil, err
	}
	return toKanbanItemInfo(item), nil
}

func (d *Daemon) handleUpdateKanbanItem(params json.RawMessage) (any, error) {
	req, err := decode[control.UpdateKanbanItemRequest](params)
	if err != nil {
		return nil, err
	}

	upd := store.KanbanItemUpdate{
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
		Status:      req.Status,
	}
	if req.Column != nil {
		col := store.KanbanColumn(*req.Column)
		upd.Column = &col
	}
	if err := d.store.UpdateKanbanItem(req.ID, upd); err != nil {
		return nil, err
	}
	return map[string]bool{"updated": true}, nil
}

func (d *Daemon) handleDeleteKanbanItem(params json.RawMessage) (any, error) {
	req, err := decode[control.IDRequest](params)
	if err != nil {
		return nil, err
	}
	if err := d.store.DeleteKanbanItem(req.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func (d *Daemon) handleGetSetting(params json.RawMessage) (any, error) {
	req, err := decode[control.SettingRequest](params)
	if err != nil {
		return nil, err
	}
	value, ok, err := d.store.GetSetting(req.Key)
	if err != nil {
		return nil, err
	}
	return control.SettingInfo{Key: req.Key, Value: value, Found: ok}, nil
}

func (d *Daemon) handleSetSetting(params json.RawMessage) (any, error) {
	req, err := decode[control.SettingRequest](params)
	if err != nil {
		return nil, err
	}
	if err := d.store.SetSetting(req.Key, req.Value); err != nil {
		return nil, err
	}
	return map[string]bool{"set": true}, nil
}

func toProjectInfo(p *store.Project) *control.ProjectInfo {
	return &control.ProjectInfo{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		AgentID:     p.AgentID,
		CreatedAt:   p.CreatedAt,
	}
}

func toThreadInfo(t *store.Thread) *control.ThreadInfo {
	return &control.ThreadInfo{
		ID:             t.ID,
		ProjectID:      t.ProjectID,
		Name:           t.Name,
		SessionID:      t.SessionID,
		AgentID:        t.AgentID,
		CreatedAt:      t.CreatedAt,
		LastMessageAt:  t.LastMessageAt,
		TitleUpdatedAt: t.TitleUpdatedAt,
	}
}

func toBrainDumpInfo(d *store.BrainDump) *control.BrainDumpInfo {
	return &control.BrainDumpInfo{
		ID:           d.ID,
		Content:      d.Content,
		ProjectID:    d.ProjectID,
		Status:       string(d.Status),
		Proactive:    d.Proactive,
		CreatedAt:    d.CreatedAt,
		FollowedUpAt: d.FollowedUpAt,
	}
}

func toKanbanItemInfo(i *store.KanbanItem) *control.KanbanItemInfo {
	return &control.KanbanItemInfo{
		ID:          i.ID,
		ProjectID:   i.ProjectID,
		SourceType:  i.SourceType,
		SourceID:    i.SourceID,
		Title:       i.Title,
		Description: i.Description,
		Column:      string(i.Column),
		Position:    i.Position,
		Status:      i.Status,
	}
}

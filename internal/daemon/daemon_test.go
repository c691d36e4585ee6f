package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/control"
)

func setupDaemon(t *testing.T) *Daemon {
	t.Helper()

	dir := t.TempDir()

	// Stand-in agent binary so client resolution succeeds.
	stub := filepath.Join(dir, "openclaw")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 1\n"), 0755); err != nil {
		t.Fatalf("failed to write stub binary: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Daemon.Database = filepath.Join(dir, "clawdeck.db")
	cfg.Daemon.Socket = filepath.Join(dir, "clawdeck.sock")
	cfg.Agent.Binary = stub
	cfg.Sessions.Dir = dir

	d, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}
	t.Cleanup(func() {
		d.cancel()
		d.store.Close()
	})
	return d
}

func mustParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	return data
}

func TestProjectHandlers(t *testing.T) {
	d := setupDaemon(t)

	res, err := d.handleCreateProject(mustParams(t, control.CreateProjectRequest{Name: "Blog"}))
	if err != nil {
		t.Fatalf("create_project failed: %v", err)
	}
	project := res.(*control.ProjectInfo)
	if project.ID == "" || project.Name != "Blog" {
		t.Fatalf("unexpected project: %+v", project)
	}
	if project.AgentID != d.config.Agent.DefaultID {
		t.Errorf("expected default agent id, got '%s'", project.AgentID)
	}

	res, err = d.handleListProjects(nil)
	if err != nil {
		t.Fatalf("list_projects failed: %v", err)
	}
	if projects := res.([]*control.ProjectInfo); len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}

	if _, err := d.handleDeleteProject(mustParams(t, control.IDRequest{ID: project.ID})); err != nil {
		t.Fatalf("delete_project failed: %v", err)
	}
}

func TestThreadHandlers(t *testing.T) {
	d := setupDaemon(t)

	res, err := d.handleCreateThread(nil)
	if err != nil {
		t.Fatalf("create_thread failed: %v", err)
	}
	thread := res.(*control.ThreadInfo)
	if thread.SessionID == "" {
		t.Fatal("expected a fresh session id")
	}
	if thread.Name == "" {
		t.Fatal("expected placeholder name")
	}

	if _, err := d.handleRenameThread(mustParams(t, control.RenameThreadRequest{ID: thread.ID, Name: "Renamed"})); err != nil {
		t.Fatalf("rename_thread failed: %v", err)
	}

	res, err = d.handleListThreads(nil)
	if err != nil {
		t.Fatalf("list_threads failed: %v", err)
	}
	threads := res.([]*control.ThreadInfo)
	if len(threads) != 1 || threads[0].Name != "Renamed" {
		t.Fatalf("unexpected threads: %+v", threads)
	}

	if _, err := d.handleDeleteThread(mustParams(t, control.IDRequest{ID: thread.ID})); err != nil {
		t.Fatalf("delete_thread failed: %v", err)
	}
}

func TestBrainDumpHandlers(t *testing.T) {
	d := setupDaemon(t)

	res, err := d.handleCreateBrainDump(mustParams(t, control.CreateBrainDumpRequest{Content: "try sourdough"}))
	if err != nil {
		t.Fatalf("create_brain_dump failed: %v", err)
	}
	dump := res.(*control.BrainDumpInfo)
	if dump.Status != "open" {
		t.Errorf("expected open status, got '%s'", dump.Status)
	}

	if _, err := d.handleSetBrainDumpProactive(mustParams(t, control.SetBrainDumpProactiveRequest{ID: dump.ID, Proactive: true})); err != nil {
		t.Fatalf("set_brain_dump_proactive failed: %v", err)
	}

	if _, err := d.handleUpdateBrainDumpStatus(mustParams(t, control.UpdateBrainDumpStatusRequest{ID: dump.ID, Status: "bogus"})); err == nil {
		t.Fatal("expected invalid status to be rejected")
	}

	res, err = d.handleConvertBrainDump(mustParams(t, control.IDRequest{ID: dump.ID}))
	if err != nil {
		t.Fatalf("convert_brain_dump failed: %v", err)
	}
	thread := res.(*control.ThreadInfo)
	if thread.SessionID == "" {
		t.Fatal("expected converted thread with session")
	}

	res, err = d.handleListBrainDumps(nil)
	if err != nil {
		t.Fatalf("list_brain_dumps failed: %v", err)
	}
	dumps := res.([]*control.BrainDumpInfo)
	if len(dumps) != 1 || dumps[0].Status != "in_progress" {
		t.Fatalf("expected in_progress dump after convert, got %+v", dumps)
	}
}

func TestKanbanHandlers(t *testing.T) {
	d := setupDaemon(t)

	res, err := d.handleCreateKanbanItem(mustParams(t, control.CreateKanbanItemRequest{Title: "Ship it"}))
	if err != nil {
		t.Fatalf("create_kanban_item failed: %v", err)
	}
	item := res.(*control.KanbanItemInfo)
	if item.Column != "backlog" || item.SourceType != "manual" {
		t.Fatalf("unexpected defaults: %+v", item)
	}

	col := "in_progress"
	if _, err := d.handleUpdateKanbanItem(mustParams(t, control.UpdateKanbanItemRequest{ID: item.ID, Column: &col})); err != nil {
		t.Fatalf("update_kanban_item failed: %v", err)
	}

	res, err = d.handleListKanbanItems(nil)
	if err != nil {
		t.Fatalf("list_kanban_items failed: %v", err)
	}
	items := res.([]*control.KanbanItemInfo)
	if len(items) != 1 || items[0].Column != "in_progress" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestSettingHandlers(t *testing.T) {
	d := setupDaemon(t)

	res, err := d.handleGetSetting(mustParams(t, control.SettingRequest{Key: "theme"}))
	if err != nil {
		t.Fatalf("get_setting failed: %v", err)
	}
	if res.(control.SettingInfo).Found {
		t.Fatal("expected missing key")
	}

	if _, err := d.handleSetSetting(mustParams(t, control.SettingRequest{Key: "theme", Value: "dark"})); err != nil {
		t.Fatalf("set_setting failed: %v", err)
	}

	res, err = d.handleGetSetting(mustParams(t, control.SettingRequest{Key: "theme"}))
	if err != nil {
		t.Fatalf("get_setting failed: %v", err)
	}
	setting := res.(control.SettingInfo)
	if !setting.Found || setting.Value != "dark" {
		t.Fatalf("unexpected setting: %+v", setting)
	}
}

func TestLoadSessionMissingLogIsEmpty(t *testing.T) {
	d := setupDaemon(t)

	res, err := d.handleLoadSession(mustParams(t, control.SessionRequest{SessionID: "never-written"}))
	if err != nil {
		t.Fatalf("load_session failed: %v", err)
	}
	conv := res.(control.ConversationResponse)
	if len(conv.Entries) != 0 {
		t.Fatalf("expected empty conversation, got %d entries", len(conv.Entries))
	}
}

func TestWatchSessionRequiresThread(t *testing.T) {
	d := setupDaemon(t)

	if _, err := d.handleWatchSession(mustParams(t, control.SessionRequest{SessionID: "orphan"})); err == nil {
		t.Fatal("expected error for session without a thread")
	}
}

func TestWatchSessionSingleSlot(t *testing.T) {
	d := setupDaemon(t)

	resA, err := d.handleCreateThread(nil)
	if err != nil {
		t.Fatalf("create_thread failed: %v", err)
	}
	resB, err := d.handleCreateThread(nil)
	if err != nil {
		t.Fatalf("create_thread failed: %v", err)
	}
	a := resA.(*control.ThreadInfo)
	b := resB.(*control.ThreadInfo)

	if _, err := d.handleWatchSession(mustParams(t, control.SessionRequest{SessionID: a.SessionID})); err != nil {
		t.Fatalf("watch_session(a) failed: %v", err)
	}
	if !d.watches.Watching(a.SessionID) {
		t.Fatal("expected watch on session a")
	}

	// Opening b deterministically cancels a's watch first.
	if _, err := d.handleWatchSession(mustParams(t, control.SessionRequest{SessionID: b.SessionID})); err != nil {
		t.Fatalf("watch_session(b) failed: %v", err)
	}
	if d.watches.Watching(a.SessionID) {
		t.Fatal("expected a's watch cancelled")
	}
	if !d.watches.Watching(b.SessionID) {
		t.Fatal("expected watch on session b")
	}

	if _, err := d.handleStopWatching(mustParams(t, control.SessionRequest{SessionID: b.SessionID})); err != nil {
		t.Fatalf("stop_watching failed: %v", err)
	}
	if d.watches.Watching(b.SessionID) {
		t.Fatal("expected b's watch stopped")
	}
}

package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clawdeck/clawdeck/internal/bus"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

type stubGate struct{ open bool }

func (g *stubGate) InFlight() bool { return g.open }

func messageLine(role, text string) string {
	return `{"type":"message","message":{"role":"` + role + `","content":[{"type":"text","text":"` + text + `"}]}}`
}

func appendLine(t *testing.T, dir string, ref sessionlog.Ref, line string) {
	t.Helper()
	path := ref.Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create session dir: %v", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open session log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("failed to append line: %v", err)
	}
}

func setupManager(t *testing.T) (*Manager, *bus.Bus, string) {
	t.Helper()
	dir := t.TempDir()
	b := bus.New()
	m := NewManager(sessionlog.NewReader(dir), b, 10*time.Millisecond)
	t.Cleanup(m.StopAll)
	return m, b, dir
}

func waitForEvent(t *testing.T, sub *bus.Subscription) bus.MessageArrived {
	t.Helper()
	select {
	case evt := <-sub.C:
		return evt.Payload.(bus.MessageArrived)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message-arrived event")
		return bus.MessageArrived{}
	}
}

func TestForwardsNewEntriesWhileInFlight(t *testing.T) {
	m, b, dir := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "s1"}
	gate := &stubGate{open: true}

	sub := b.Subscribe(bus.TopicMessageArrived)
	defer sub.Unsubscribe()

	m.Watch(ref, gate, nil)

	appendLine(t, dir, ref, messageLine("assistant", "first"))
	evt := waitForEvent(t, sub)
	if evt.SessionID != "s1" || evt.Entry.Content != "first" {
		t.Errorf("unexpected event: %+v", evt)
	}

	appendLine(t, dir, ref, messageLine("assistant", "second"))
	evt = waitForEvent(t, sub)
	if evt.Entry.Content != "second" {
		t.Errorf("expected in-order delivery, got %+v", evt)
	}
}

func TestGateSuppressesForwarding(t *testing.T) {
	m, b, dir := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "s1"}
	gate := &stubGate{}

	sub := b.Subscribe(bus.TopicMessageArrived)
	defer sub.Unsubscribe()

	m.Watch(ref, gate, nil)
	appendLine(t, dir, ref, messageLine("assistant", "hidden"))

	select {
	case evt := <-sub.C:
		t.Fatalf("expected no events while gate closed, got %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLastSeenAdvancesWhileGateClosed(t *testing.T) {
	m, b, dir := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "s1"}
	gate := &stubGate{}

	sub := b.Subscribe(bus.TopicMessageArrived)
	defer sub.Unsubscribe()

	m.Watch(ref, gate, nil)

	// Entries observed while the gate is closed are consumed, not queued.
	appendLine(t, dir, ref, messageLine("assistant", "while closed"))
	time.Sleep(100 * time.Millisecond)

	gate.open = true
	appendLine(t, dir, ref, messageLine("assistant", "while open"))

	evt := waitForEvent(t, sub)
	if evt.Entry.Content != "while open" {
		t.Errorf("expected only the post-open entry, got %+v", evt)
	}
}

func TestExistingHistoryNotRepublished(t *testing.T) {
	m, b, dir := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "s1"}

	appendLine(t, dir, ref, messageLine("user", "old"))
	appendLine(t, dir, ref, messageLine("assistant", "old reply"))

	gate := &stubGate{open: true}
	sub := b.Subscribe(bus.TopicMessageArrived)
	defer sub.Unsubscribe()

	m.Watch(ref, gate, nil)

	select {
	case evt := <-sub.C:
		t.Fatalf("historical entry republished: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	appendLine(t, dir, ref, messageLine("assistant", "new"))
	evt := waitForEvent(t, sub)
	if evt.Entry.Content != "new" {
		t.Errorf("expected only the new entry, got %+v", evt)
	}
}

func TestSingleWatchPerSession(t *testing.T) {
	m, b, dir := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "s1"}
	gate := &stubGate{open: true}

	sub := b.Subscribe(bus.TopicMessageArrived)
	defer sub.Unsubscribe()

	m.Watch(ref, gate, nil)
	m.Watch(ref, gate, nil) // replaces, never overlaps

	if !m.Watching("s1") {
		t.Fatal("expected a live watch for s1")
	}

	appendLine(t, dir, ref, messageLine("assistant", "once"))
	evt := waitForEvent(t, sub)
	if evt.Entry.Content != "once" {
		t.Errorf("unexpected event: %+v", evt)
	}

	// A second watch loop would deliver a duplicate.
	select {
	case evt := <-sub.C:
		t.Fatalf("duplicate delivery, second loop still alive: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConcurrentWatchLeavesOneLoop(t *testing.T) {
	m, b, dir := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "s1"}
	gate := &stubGate{open: true}

	sub := b.Subscribe(bus.TopicMessageArrived)
	defer sub.Unsubscribe()

	// Racing Watch calls for one session must serialize: the loser replaces
	// the winner, never orphans it.
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			m.Watch(ref, gate, nil)
		}()
	}
	close(start)
	wg.Wait()

	if !m.Watching("s1") {
		t.Fatal("expected a live watch for s1")
	}

	appendLine(t, dir, ref, messageLine("assistant", "once"))
	evt := waitForEvent(t, sub)
	if evt.Entry.Content != "once" {
		t.Errorf("unexpected event: %+v", evt)
	}

	select {
	case evt := <-sub.C:
		t.Fatalf("entry delivered twice, an orphaned loop survived: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	// After Stop, no loop may remain reachable or running.
	m.Stop("s1")
	appendLine(t, dir, ref, messageLine("assistant", "after stop"))
	select {
	case evt := <-sub.C:
		t.Fatalf("delivery after Stop, a loop escaped the registry: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopWaitsForLoopExit(t *testing.T) {
	m, _, _ := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "s1"}

	m.Watch(ref, &stubGate{}, nil)
	if !m.Watching("s1") {
		t.Fatal("expected a live watch")
	}

	m.Stop("s1")
	if m.Watching("s1") {
		t.Fatal("expected watch removed after Stop")
	}

	// Stopping again is a no-op.
	m.Stop("s1")
}

func TestMissingLogIsQuietTick(t *testing.T) {
	m, b, _ := setupManager(t)
	ref := sessionlog.Ref{AgentID: "main", SessionID: "never-written"}
	gate := &stubGate{open: true}

	sub := b.Subscribe(bus.TopicMessageArrived)
	defer sub.Unsubscribe()

	m.Watch(ref, gate, nil)

	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected event for missing log: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
	if !m.Watching(ref.SessionID) {
		t.Fatal("expected loop to keep running through missing-log ticks")
	}
}

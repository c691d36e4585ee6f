package title

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/clawdeck/clawdeck/internal/bus"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
	"github.com/clawdeck/clawdeck/internal/store"
)

type fakeInvoker struct {
	title string
	err   error
	calls int
}

func (f *fakeInvoker) Send(ctx context.Context, ref sessionlog.Ref, text string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeInvoker) Summarize(ctx context.Context, excerpt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.title, nil
}

func setupGenerator(t *testing.T, inv *fakeInvoker) (*Generator, *store.Store, *bus.Bus) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	b := bus.New()
	return New(st, inv, b), st, b
}

func TestFromFirstMessage(t *testing.T) {
	inv := &fakeInvoker{title: "Greeting Exchange"}
	g, st, b := setupGenerator(t, inv)

	thread := &store.Thread{ID: "t1", Name: store.PlaceholderThreadName, SessionID: "s1", AgentID: "main"}
	if err := st.CreateThread(thread); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	sub := b.Subscribe(bus.TopicThreadRenamed)
	defer sub.Unsubscribe()

	if err := g.FromFirstMessage(context.Background(), "t1", "hi"); err != nil {
		t.Fatalf("FromFirstMessage failed: %v", err)
	}

	got, err := st.GetThread("t1")
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if got.Name != "Greeting Exchange" {
		t.Errorf("expected renamed thread, got '%s'", got.Name)
	}
	if got.TitleUpdatedAt == nil {
		t.Error("expected title_updated_at to advance")
	}

	select {
	case evt := <-sub.C:
		payload := evt.Payload.(bus.ThreadRenamed)
		if payload.ThreadID != "t1" || payload.Name != "Greeting Exchange" {
			t.Errorf("unexpected event payload: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected thread-renamed event")
	}

	// Exactly once.
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected second event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGeneratorFailureLeavesNameIntact(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("agent unavailable")}
	g, st, b := setupGenerator(t, inv)

	thread := &store.Thread{ID: "t1", Name: store.PlaceholderThreadName, SessionID: "s1", AgentID: "main"}
	if err := st.CreateThread(thread); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	sub := b.Subscribe(bus.TopicThreadRenamed)
	defer sub.Unsubscribe()

	if err := g.FromFirstMessage(context.Background(), "t1", "hi"); err == nil {
		t.Fatal("expected error from failed summarization")
	}

	got, err := st.GetThread("t1")
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if !got.HasPlaceholderName() {
		t.Errorf("expected placeholder name preserved, got '%s'", got.Name)
	}

	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected event after failure: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFromRecentContextBoundsWindow(t *testing.T) {
	inv := &fakeInvoker{title: "Long Running Chat"}
	g, st, _ := setupGenerator(t, inv)

	thread := &store.Thread{ID: "t1", Name: "Old", SessionID: "s1", AgentID: "main"}
	if err := st.CreateThread(thread); err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	entries := make([]sessionlog.Entry, recentWindow*3)
	for i := range entries {
		entries[i] = sessionlog.Entry{Role: sessionlog.RoleUser, Content: "m"}
	}

	if err := g.FromRecentContext(context.Background(), "t1", entries); err != nil {
		t.Fatalf("FromRecentContext failed: %v", err)
	}
	if inv.calls != 1 {
		t.Errorf("expected 1 summarize call, got %d", inv.calls)
	}

	got, err := st.GetThread("t1")
	if err != nil {
		t.Fatalf("GetThread failed: %v", err)
	}
	if got.Name != "Long Running Chat" {
		t.Errorf("expected refreshed title, got '%s'", got.Name)
	}
}

package chat

import (
	"testing"

	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

func TestAppendSkipsDuplicates(t *testing.T) {
	v := NewView()

	entry := sessionlog.Entry{Role: sessionlog.RoleUser, Content: "hi"}
	if !v.Append(entry) {
		t.Fatal("expected first append to succeed")
	}
	if v.Append(entry) {
		t.Fatal("expected duplicate append to be skipped")
	}
	if v.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", v.Len())
	}

	// Same content, different role: not a duplicate.
	if !v.Append(sessionlog.Entry{Role: sessionlog.RoleAssistant, Content: "hi"}) {
		t.Fatal("expected append with different role to succeed")
	}
}

func TestReplaceDeduplicates(t *testing.T) {
	v := NewView()
	v.Append(sessionlog.Entry{Role: sessionlog.RoleUser, Content: "optimistic"})

	v.Replace([]sessionlog.Entry{
		{Role: sessionlog.RoleUser, Content: "hi"},
		{Role: sessionlog.RoleAssistant, Content: "hello!"},
		{Role: sessionlog.RoleUser, Content: "hi"},
	})

	entries := v.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after dedup, got %d", len(entries))
	}
	if entries[0].Content != "hi" || entries[1].Content != "hello!" {
		t.Errorf("unexpected order: %+v", entries)
	}
}

func TestDedupFirstOccurrenceWins(t *testing.T) {
	in := []sessionlog.Entry{
		{Role: sessionlog.RoleUser, Content: "a"},
		{Role: sessionlog.RoleAssistant, Content: "b"},
		{Role: sessionlog.RoleUser, Content: "a"},
		{Role: sessionlog.RoleUser, Content: "c"},
	}
	out := Dedup(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	want := []string{"a", "b", "c"}
	for i, e := range out {
		if e.Content != want[i] {
			t.Errorf("entry %d: expected '%s', got '%s'", i, want[i], e.Content)
		}
	}
}

func TestInflightFlag(t *testing.T) {
	var f InflightFlag

	if f.InFlight() {
		t.Fatal("expected flag to start clear")
	}
	if !f.Acquire() {
		t.Fatal("expected first acquire to win")
	}
	if f.Acquire() {
		t.Fatal("expected second acquire to lose")
	}
	if !f.InFlight() {
		t.Fatal("expected flag set after acquire")
	}
	f.Clear()
	if f.InFlight() {
		t.Fatal("expected flag clear after Clear")
	}
	if !f.Acquire() {
		t.Fatal("expected acquire to win after Clear")
	}
}

package chat

import (
	"sync"
	"sync/atomic"

	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

// InflightFlag gates watch-forwarded events for one session's send. It is
// owned by the per-session send state and shared by reference with the
// session watch; the reconciler is the only writer.
type InflightFlag struct {
	v atomic.Bool
}

// Acquire attempts the false->true transition, reporting whether this
// caller won it.
func (f *InflightFlag) Acquire() bool {
	return f.v.CompareAndSwap(false, true)
}

// Clear resets the flag.
func (f *InflightFlag) Clear() {
	f.v.Store(false)
}

// InFlight reports whether a send is currently in flight.
func (f *InflightFlag) InFlight() bool {
	return f.v.Load()
}

// View is the in-memory ordered conversation for one open thread. It is
// mutated by the optimistic append on send, incremental appends from watch
// events, and wholesale replacement on post-send reconciliation.
type View struct {
	mu      sync.Mutex
	entries []sessionlog.Entry
}

// NewView returns an empty view.
func NewView() *View {
	return &View{}
}

// Entries returns a copy of the current view.
func (v *View) Entries() []sessionlog.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]sessionlog.Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Len returns the current entry count.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Append adds an entry unless an identical one is already present. Two
// entries are duplicates when role and content are exactly equal; the first
// occurrence wins. Reports whether the entry was added.
func (v *View) Append(e sessionlog.Entry) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, existing := range v.entries {
		if existing == e {
			return false
		}
	}
	v.entries = append(v.entries, e)
	return true
}

// Replace swaps the view wholesale for the canonical sequence, deduplicated.
// Canonical always wins over optimistic state once available.
func (v *View) Replace(entries []sessionlog.Entry) {
	deduped := Dedup(entries)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = deduped
}

// Dedup drops entries whose role and content exactly match an earlier entry,
// preserving order.
func Dedup(entries []sessionlog.Entry) []sessionlog.Entry {
	seen := make(map[sessionlog.Entry]struct{}, len(entries))
	out := make([]sessionlog.Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

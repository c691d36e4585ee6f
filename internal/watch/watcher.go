// Package watch polls the session logs of open threads and forwards newly
// appended entries to the event bus while an exchange is in flight.
package watch

import (
	"errors"
	"sync"
	"time"

	"github.com/clawdeck/clawdeck/internal/bus"
	"github.com/clawdeck/clawdeck/internal/logging"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

// DefaultPollInterval is the fixed cadence between log reads.
const DefaultPollInterval = 500 * time.Millisecond

// Gate reports whether the owning exchange is in flight. Forwarding is
// suppressed while the gate is closed, so historical entries loaded at
// thread-open time are never re-published as new arrivals.
type Gate interface {
	InFlight() bool
}

// Appender receives forwarded entries, typically the open thread's
// conversation view.
type Appender interface {
	Append(sessionlog.Entry) bool
}

// handle is the state of one live watch loop, owned exclusively by that
// loop's goroutine once started.
type handle struct {
	ref      sessionlog.Ref
	lastSeen int
	cancel   chan struct{}
	done     chan struct{}
}

// Manager enforces at most one live watch per session id and owns the poll
// loops' lifecycles. mu is held across the whole cancel-and-replace sequence,
// so concurrent Watch and Stop calls for one session serialize and can never
// leave an orphaned loop behind.
type Manager struct {
	reader   *sessionlog.Reader
	bus      *bus.Bus
	interval time.Duration

	mu     sync.Mutex
	active map[string]*handle
}

// NewManager returns a Manager polling at the given interval, or
// DefaultPollInterval when zero.
func NewManager(reader *sessionlog.Reader, b *bus.Bus, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Manager{
		reader:   reader,
		bus:      b,
		interval: interval,
		active:   make(map[string]*handle),
	}
}

// Watch starts a poll loop for the session, replacing any live watch for
// the same session id. The previous loop is cancelled and awaited before
// the new one starts, so no two watches for one session ever overlap.
func (m *Manager) Watch(ref sessionlog.Ref, gate Gate, view Appender) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked(ref.SessionID)

	h := &handle{
		ref:    ref,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	// Baseline at the current log length so existing history is never
	// treated as newly arrived.
	if entries, _, err := m.reader.Read(ref); err == nil {
		h.lastSeen = len(entries)
	}

	m.active[ref.SessionID] = h
	go m.loop(h, gate, view)
}

// Stop cancels the session's watch, if any, and waits for its loop to exit.
func (m *Manager) Stop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(sessionID)
}

// stopLocked evicts the session's handle and waits for its loop. Caller
// holds mu; the loop never takes mu, so waiting under it is safe.
func (m *Manager) stopLocked(sessionID string) {
	h, ok := m.active[sessionID]
	if !ok {
		return
	}
	delete(m.active, sessionID)
	close(h.cancel)
	<-h.done
}

// StopAll cancels every live watch. Called on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.active {
		m.stopLocked(id)
	}
}

// Watching reports whether a live watch exists for the session.
func (m *Manager) Watching(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[sessionID]
	return ok
}

func (m *Manager) loop(h *handle, gate Gate, view Appender) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			logging.CapturePanic(r, "loop", "session-watch")
		}
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.cancel:
			return
		case <-ticker.C:
			m.tick(h, gate, view)
		}
	}
}

// tick reads the log once and forwards entries beyond the last-seen count.
// Read failures count as no new entries this tick; the loop never
// terminates itself.
func (m *Manager) tick(h *handle, gate Gate, view Appender) {
	entries, malformed, err := m.reader.Read(h.ref)
	if err != nil {
		if !errors.Is(err, sessionlog.ErrSourceUnavailable) {
			logging.Debug("session log read failed", "session_id", h.ref.SessionID, "error", err)
		}
		return
	}
	for _, bad := range malformed {
		logging.Debug("skipped malformed session log line", "session_id", h.ref.SessionID, "error", bad)
	}

	if len(entries) <= h.lastSeen {
		return
	}
	fresh := entries[h.lastSeen:]
	h.lastSeen = len(entries)

	// The last-seen count always advances; forwarding happens only while
	// the owning send is in flight.
	if !gate.InFlight() {
		return
	}

	for _, e := range fresh {
		if view != nil {
			view.Append(e)
		}
		m.bus.Publish(bus.TopicMessageArrived, bus.MessageArrived{
			SessionID: h.ref.SessionID,
			Entry:     e,
		})
	}
}

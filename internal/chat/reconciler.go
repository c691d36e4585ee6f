// Package chat is the interactive-path state machine: it accepts a user
// message, appends it optimistically, invokes the agent, and reconciles the
// local view against the canonical session log regardless of the
// invocation's outcome.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/clawdeck/clawdeck/internal/logging"
	"github.com/clawdeck/clawdeck/internal/openclaw"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
	"github.com/clawdeck/clawdeck/internal/store"
	"github.com/clawdeck/clawdeck/internal/title"
)

var (
	// ErrEmptyMessage rejects messages that trim to nothing.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrSendInFlight rejects a second concurrent send on the same thread.
	ErrSendInFlight = errors.New("a send is already in flight for this thread")
)

// Session is the per-thread interactive state: the conversation view and
// the in-flight flag shared with the session watch.
type Session struct {
	Ref      sessionlog.Ref
	ThreadID string
	View     *View
	Inflight *InflightFlag
}

// Reconciler owns the open sessions and runs the send state machine.
type Reconciler struct {
	store  *store.Store
	reader *sessionlog.Reader
	agent  openclaw.Invoker
	titles *title.Generator

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewReconciler wires the interactive path.
func NewReconciler(st *store.Store, reader *sessionlog.Reader, agent openclaw.Invoker, titles *title.Generator) *Reconciler {
	return &Reconciler{
		store:    st,
		reader:   reader,
		agent:    agent,
		titles:   titles,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session state for a thread, creating it and loading the
// canonical log on first open. A missing log is a brand-new session, not an
// error.
func (r *Reconciler) Open(ref sessionlog.Ref, threadID string) (*Session, error) {
	r.mu.Lock()
	if sess, ok := r.sessions[ref.SessionID]; ok {
		r.mu.Unlock()
		return sess, nil
	}
	sess := &Session{
		Ref:      ref,
		ThreadID: threadID,
		View:     NewView(),
		Inflight: &InflightFlag{},
	}
	r.sessions[ref.SessionID] = sess
	r.mu.Unlock()

	entries, malformed, err := r.reader.Read(ref)
	if err != nil && !errors.Is(err, sessionlog.ErrSourceUnavailable) {
		// Deregister, or the next Open would return this empty view as if
		// the load had succeeded.
		r.Close(ref.SessionID)
		return nil, err
	}
	for _, m := range malformed {
		logging.Warn("skipped malformed session log line", "session_id", ref.SessionID, "error", m)
	}
	if len(entries) > 0 {
		sess.View.Replace(entries)
	}
	return sess, nil
}

// Lookup returns the open session for a session id, if any.
func (r *Reconciler) Lookup(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	return sess, ok
}

// Close drops the session state for a session id.
func (r *Reconciler) Close(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Send runs one exchange: optimistic append, agent invocation, canonical
// reconciliation. The agent failure, if any, is returned after
// reconciliation so the caller can offer a retry; it never leaves the view
// inconsistent.
func (r *Reconciler) Send(ctx context.Context, sess *Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !sess.Inflight.Acquire() {
		return ErrSendInFlight
	}
	defer sess.Inflight.Clear()

	sess.View.Append(sessionlog.Entry{Role: sessionlog.RoleUser, Content: text})

	_, sendErr := r.agent.Send(ctx, sess.Ref, text)
	if sendErr != nil {
		logging.Warn("agent send failed", "session_id", sess.Ref.SessionID, "error", sendErr)
	}

	r.reconcile(sess)

	now := time.Now()
	if err := r.store.TouchThread(sess.ThreadID, now); err != nil {
		logging.Error("failed to touch thread", "thread_id", sess.ThreadID, "error", err)
	}

	// The placeholder check inside maybeTitle keeps this a no-op once a real
	// name is set, so a failed first exchange retries titling on the next
	// successful send.
	if sendErr == nil {
		r.maybeTitle(sess.ThreadID, text)
	}

	return sendErr
}

// Reconcile reloads the canonical log into the session's view. Exposed so
// callers can force a refresh outside the send path.
func (r *Reconciler) Reconcile(sess *Session) {
	r.reconcile(sess)
}

// reconcile replaces the view wholesale with the canonical log. When the
// canonical read yields nothing the optimistic entries are preserved rather
// than discarded, so the user's own message is never silently lost.
func (r *Reconciler) reconcile(sess *Session) {
	entries, malformed, err := r.reader.Read(sess.Ref)
	if err != nil {
		if !errors.Is(err, sessionlog.ErrSourceUnavailable) {
			logging.Warn("canonical reload failed", "session_id", sess.Ref.SessionID, "error", err)
		}
		return
	}
	for _, m := range malformed {
		logging.Warn("skipped malformed session log line", "session_id", sess.Ref.SessionID, "error", m)
	}
	if len(entries) == 0 {
		return
	}
	sess.View.Replace(entries)
}

// maybeTitle kicks off first-exchange auto-titling when the thread still
// carries the placeholder name. Runs in the background so the interactive
// path returns immediately; failure leaves the thread eligible on its next
// message.
func (r *Reconciler) maybeTitle(threadID, userText string) {
	thread, err := r.store.GetThread(threadID)
	if err != nil || thread == nil || !thread.HasPlaceholderName() {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.CapturePanic(r, "goroutine", "chat-title")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := r.titles.FromFirstMessage(ctx, threadID, userText); err != nil {
			logging.Warn("first-message titling failed", "thread_id", threadID, "error", err)
		}
	}()
}

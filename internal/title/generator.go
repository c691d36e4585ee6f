// Package title names threads from their conversation content. It is
// invoked inline after a thread's first exchange and from the nightly
// refresh sweep; failures are never fatal, the thread keeps its current
// name and stays eligible for the next trigger.
package title

import (
	"context"
	"fmt"
	"strings"

	"github.com/clawdeck/clawdeck/internal/bus"
	"github.com/clawdeck/clawdeck/internal/openclaw"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
	"github.com/clawdeck/clawdeck/internal/store"
)

// recentWindow bounds how much conversation the refresh sweep feeds to the
// summarizer.
const recentWindow = 10

// Generator produces and persists thread titles.
type Generator struct {
	store *store.Store
	agent openclaw.Invoker
	bus   *bus.Bus
}

// New returns a Generator writing through the given store and announcing
// renames on the bus.
func New(st *store.Store, agent openclaw.Invoker, b *bus.Bus) *Generator {
	return &Generator{store: st, agent: agent, bus: b}
}

// FromFirstMessage titles a thread from its opening user message. Called
// after the first assistant response lands for a thread still carrying the
// placeholder name.
func (g *Generator) FromFirstMessage(ctx context.Context, threadID, userText string) error {
	return g.rename(ctx, threadID, userText)
}

// FromRecentContext titles a thread from a bounded window of its most
// recent entries. Used by the nightly refresh sweep.
func (g *Generator) FromRecentContext(ctx context.Context, threadID string, entries []sessionlog.Entry) error {
	if len(entries) > recentWindow {
		entries = entries[len(entries)-recentWindow:]
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(string(e.Role))
		b.WriteString(": ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return g.rename(ctx, threadID, b.String())
}

func (g *Generator) rename(ctx context.Context, threadID, excerpt string) error {
	name, err := g.agent.Summarize(ctx, excerpt)
	if err != nil {
		return fmt.Errorf("generate title: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("generate title: empty result")
	}

	if err := g.store.RenameThread(threadID, name); err != nil {
		return fmt.Errorf("persist title: %w", err)
	}

	g.bus.Publish(bus.TopicThreadRenamed, bus.ThreadRenamed{ThreadID: threadID, Name: name})
	return nil
}

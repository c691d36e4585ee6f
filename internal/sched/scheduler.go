// Package sched runs the two background sweeps: the proactive brain-dump
// follow-up and the nightly title refresh. The loops share nothing but the
// store, and an individual item's failure never aborts the rest of a pass.
package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clawdeck/clawdeck/internal/bus"
	"github.com/clawdeck/clawdeck/internal/logging"
	"github.com/clawdeck/clawdeck/internal/openclaw"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
	"github.com/clawdeck/clawdeck/internal/store"
	"github.com/clawdeck/clawdeck/internal/title"
)

// DefaultFollowUpInterval is the cadence of the brain-dump sweep.
const DefaultFollowUpInterval = 4 * time.Hour

// DefaultRefreshAt is the local wall-clock trigger for the nightly title
// refresh.
const DefaultRefreshAt = "23:55"

// settingLastTitleRefresh records the date of the last completed nightly
// refresh, so a trigger missed while the process was down runs once at
// startup.
const settingLastTitleRefresh = "last_title_refresh"

// Scheduler owns both background sweeps.
type Scheduler struct {
	store  *store.Store
	reader *sessionlog.Reader
	agent  openclaw.Invoker
	titles *title.Generator
	bus    *bus.Bus

	agentID          string
	followUpInterval time.Duration
	refreshHour      int
	refreshMinute    int
}

// New builds a Scheduler. refreshAt is a local "HH:MM" wall-clock time;
// invalid values fall back to DefaultRefreshAt.
func New(st *store.Store, reader *sessionlog.Reader, agent openclaw.Invoker, titles *title.Generator, b *bus.Bus, agentID string, followUpInterval time.Duration, refreshAt string) *Scheduler {
	if followUpInterval <= 0 {
		followUpInterval = DefaultFollowUpInterval
	}
	hour, minute, err := parseClock(refreshAt)
	if err != nil {
		logging.Warn("invalid title refresh time, using default", "value", refreshAt, "default", DefaultRefreshAt)
		hour, minute, _ = parseClock(DefaultRefreshAt)
	}
	return &Scheduler{
		store:            st,
		reader:           reader,
		agent:            agent,
		titles:           titles,
		bus:              b,
		agentID:          agentID,
		followUpInterval: followUpInterval,
		refreshHour:      hour,
		refreshMinute:    minute,
	}
}

func parseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time out of range: %s", s)
	}
	return hour, minute, nil
}

// RunFollowUpLoop sweeps proactive brain dumps on a fixed interval until
// the context is cancelled.
func (s *Scheduler) RunFollowUpLoop(ctx context.Context) {
	ticker := time.NewTicker(s.followUpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.FollowUpPass(ctx); err != nil {
				logging.Error("follow-up sweep failed", "error", err)
			}
		}
	}
}

// FollowUpPass runs one sweep over proactive open brain dumps. Each item is
// followed up at most once across all ticks: the claim on followed_up_at is
// a conditional write, so a concurrent pass simply loses the item.
func (s *Scheduler) FollowUpPass(ctx context.Context) error {
	items, err := s.store.ListProactiveOpenBrainDumps()
	if err != nil {
		return fmt.Errorf("list proactive brain dumps: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.followUp(ctx, item); err != nil {
			logging.Warn("brain dump follow-up failed", "item_id", item.ID, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) followUp(ctx context.Context, item *store.BrainDump) error {
	sessionID := uuid.New().String()
	ref := sessionlog.Ref{AgentID: s.agentID, SessionID: sessionID}
	prompt := fmt.Sprintf("I jotted this down earlier: '%s'. Do you have thoughts, or can you help me take a first step on it?", item.Content)

	if _, err := s.agent.Send(ctx, ref, prompt); err != nil {
		// Item stays open and eligible for the next pass.
		return err
	}

	now := time.Now()
	claimed, err := s.store.ClaimBrainDumpFollowUp(item.ID, now)
	if err != nil {
		return fmt.Errorf("claim follow-up: %w", err)
	}
	if !claimed {
		return nil
	}

	thread := &store.Thread{
		ID:        uuid.New().String(),
		ProjectID: item.ProjectID,
		Name:      store.PlaceholderThreadName,
		SessionID: sessionID,
		AgentID:   s.agentID,
	}
	if err := s.store.CreateThread(thread); err != nil {
		return fmt.Errorf("create follow-up thread: %w", err)
	}
	if err := s.store.TouchThread(thread.ID, now); err != nil {
		logging.Warn("failed to touch follow-up thread", "thread_id", thread.ID, "error", err)
	}

	s.bus.Publish(bus.TopicBrainDumpFollowedUp, bus.BrainDumpFollowedUp{
		ItemID:    item.ID,
		SessionID: sessionID,
		Content:   item.Content,
		ProjectID: item.ProjectID,
	})
	return nil
}

// RunTitleRefreshLoop fires the title refresh once per day at the
// configured wall-clock time, recomputing the next fire time after each
// run. A trigger missed while the process was down runs once at startup.
func (s *Scheduler) RunTitleRefreshLoop(ctx context.Context) {
	s.catchUp(ctx)

	for {
		next := s.nextFire(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.RefreshStaleTitles(ctx); err != nil {
				logging.Error("title refresh failed", "error", err)
			}
			s.recordRefresh(next)
		}
	}
}

// catchUp runs a refresh when the most recent scheduled trigger passed
// without a recorded run. A fresh database just records the baseline.
func (s *Scheduler) catchUp(ctx context.Context) {
	prev := s.prevFire(time.Now())
	prevDate := prev.Format("2006-01-02")

	last, ok, err := s.store.GetSetting(settingLastTitleRefresh)
	if err != nil {
		logging.Error("failed to read refresh bookkeeping", "error", err)
		return
	}
	if !ok {
		s.recordRefresh(prev)
		return
	}
	if last >= prevDate {
		return
	}

	logging.Info("running missed title refresh", "last_run", last, "missed", prevDate)
	if err := s.RefreshStaleTitles(ctx); err != nil {
		logging.Error("catch-up title refresh failed", "error", err)
		return
	}
	s.recordRefresh(prev)
}

func (s *Scheduler) recordRefresh(fire time.Time) {
	if err := s.store.SetSetting(settingLastTitleRefresh, fire.Format("2006-01-02")); err != nil {
		logging.Error("failed to record title refresh", "error", err)
	}
}

// nextFire returns the next trigger strictly after now.
func (s *Scheduler) nextFire(now time.Time) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(), s.refreshHour, s.refreshMinute, 0, 0, now.Location())
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// prevFire returns the most recent trigger at or before now.
func (s *Scheduler) prevFire(now time.Time) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(), s.refreshHour, s.refreshMinute, 0, 0, now.Location())
	if fire.After(now) {
		fire = fire.AddDate(0, 0, -1)
	}
	return fire
}

// RefreshStaleTitles retitles every thread whose conversation advanced past
// its last title. Threads without drift are skipped by the store query;
// per-thread failures are logged and the pass continues.
func (s *Scheduler) RefreshStaleTitles(ctx context.Context) error {
	threads, err := s.store.ThreadsNeedingTitleRefresh()
	if err != nil {
		return fmt.Errorf("list stale threads: %w", err)
	}

	for _, thread := range threads {
		if err := ctx.Err(); err != nil {
			return err
		}

		ref := sessionlog.Ref{AgentID: thread.AgentID, SessionID: thread.SessionID}
		entries, malformed, err := s.reader.Read(ref)
		if err != nil {
			if !errors.Is(err, sessionlog.ErrSourceUnavailable) {
				logging.Warn("failed to read session for title refresh", "thread_id", thread.ID, "error", err)
			}
			continue
		}
		for _, bad := range malformed {
			logging.Debug("skipped malformed session log line", "session_id", ref.SessionID, "error", bad)
		}
		if len(entries) == 0 {
			continue
		}

		if err := s.titles.FromRecentContext(ctx, thread.ID, entries); err != nil {
			var invErr *openclaw.InvocationError
			if errors.As(err, &invErr) {
				logging.Warn("title refresh skipped thread", "thread_id", thread.ID, "error", err)
				continue
			}
			logging.Warn("title refresh failed for thread", "thread_id", thread.ID, "error", err)
		}
	}
	return nil
}

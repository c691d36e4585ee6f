// Package daemon implements the clawdeckd background service: it wires the
// store, the event bus, the session watch, the reconciler, and the two
// background sweeps behind the unix-socket control plane.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/clawdeck/clawdeck/internal/bus"
	"github.com/clawdeck/clawdeck/internal/chat"
	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/control"
	"github.com/clawdeck/clawdeck/internal/logging"
	"github.com/clawdeck/clawdeck/internal/openclaw"
	"github.com/clawdeck/clawdeck/internal/sched"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
	"github.com/clawdeck/clawdeck/internal/store"
	"github.com/clawdeck/clawdeck/internal/title"
	"github.com/clawdeck/clawdeck/internal/watch"
)

// ShutdownTimeout is how long to wait for background loops on shutdown.
const ShutdownTimeout = 10 * time.Second

// Daemon is the clawdeck background service.
type Daemon struct {
	config     *config.Config
	store      *store.Store
	server     *control.Server
	bus        *bus.Bus
	reader     *sessionlog.Reader
	agent      openclaw.Invoker
	titles     *title.Generator
	reconciler *chat.Reconciler
	watches    *watch.Manager
	scheduler  *sched.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// New creates a daemon instance from configuration.
func New(cfg *config.Config) (*Daemon, error) {
	st, err := store.New(cfg.Daemon.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	agent, err := openclaw.NewClient(cfg.Agent.Binary, cfg.Agent.Timeout)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to resolve agent binary: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := bus.New()
	reader := sessionlog.NewReader(cfg.Sessions.Dir)
	titles := title.New(st, agent, b)

	d := &Daemon{
		config:     cfg,
		store:      st,
		server:     control.NewServer(cfg.Daemon.Socket),
		bus:        b,
		reader:     reader,
		agent:      agent,
		titles:     titles,
		reconciler: chat.NewReconciler(st, reader, agent, titles),
		watches:    watch.NewManager(reader, b, cfg.Sessions.PollInterval),
		scheduler: sched.New(st, reader, agent, titles, b,
			cfg.Agent.DefaultID, cfg.Sweeps.FollowUpInterval, cfg.Sweeps.TitleRefreshAt),
		ctx:    ctx,
		cancel: cancel,
	}

	d.registerHandlers()
	return d, nil
}

// Run starts the daemon and blocks until shutdown.
func (d *Daemon) Run() error {
	if err := d.server.Start(); err != nil {
		return err
	}
	logging.Info("control server listening", "socket", d.config.Daemon.Socket)

	d.wg.Add(3)
	go d.safeLoop("follow-up-loop", func() { d.scheduler.RunFollowUpLoop(d.ctx) })
	go d.safeLoop("title-refresh-loop", func() { d.scheduler.RunTitleRefreshLoop(d.ctx) })
	go d.safeLoop("event-bridge", d.bridgeEvents)

	sigCh := make(chan os.Signal, 2) // room for a second, forcing signal
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.signalLoop(sigCh)
}

// signalLoop handles OS signals for graceful shutdown.
func (d *Daemon) signalLoop(sigCh <-chan os.Signal) error {
	sig := <-sigCh
	logging.Info("received shutdown signal, starting graceful shutdown", "signal", sig.String())

	shutdownDone := make(chan struct{})
	go func() {
		d.gracefulShutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		logging.Info("graceful shutdown complete")
		return nil
	case sig2 := <-sigCh:
		logging.Warn("received second signal, forcing immediate shutdown", "signal", sig2.String())
		d.forceShutdown()
		return fmt.Errorf("forced shutdown by signal: %s", sig2.String())
	}
}

func (d *Daemon) gracefulShutdown() {
	d.shutdownOnce.Do(func() {
		d.server.Stop()
		d.cancel()
		d.watches.StopAll()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logging.Info("all background loops stopped")
		case <-time.After(ShutdownTimeout):
			logging.Warn("shutdown timeout exceeded")
		}

		if err := d.store.Close(); err != nil {
			logging.Error("error closing database", "error", err)
		}
		logging.Flush(2 * time.Second)
	})
}

func (d *Daemon) forceShutdown() {
	d.server.Stop()
	d.store.Close()
	logging.Flush(500 * time.Millisecond)
}

// bridgeEvents forwards bus events to connected control clients.
func (d *Daemon) bridgeEvents() {
	topics := []string{
		bus.TopicMessageArrived,
		bus.TopicThreadRenamed,
		bus.TopicBrainDumpFollowedUp,
	}

	subs := make([]*bus.Subscription, 0, len(topics))
	for _, topic := range topics {
		subs = append(subs, d.bus.Subscribe(topic))
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	for {
		select {
		case <-d.ctx.Done():
			return
		case evt := <-subs[0].C:
			d.server.Broadcast(control.Event{Type: evt.Topic, Payload: evt.Payload})
		case evt := <-subs[1].C:
			d.server.Broadcast(control.Event{Type: evt.Topic, Payload: evt.Payload})
		case evt := <-subs[2].C:
			d.server.Broadcast(control.Event{Type: evt.Topic, Payload: evt.Payload})
		}
	}
}

// safeLoop wraps a background loop with panic recovery; a panicking loop
// takes the daemon down gracefully instead of crashing the process.
func (d *Daemon) safeLoop(name string, fn func()) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logging.CapturePanic(r, "loop", name)
			d.cancel()
		}
	}()
	fn()
}

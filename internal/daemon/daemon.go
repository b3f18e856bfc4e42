// Package daemon wires the coordination core into the long-lived presenter
// process: config, durable store, queue state, cross-context broadcast,
// display manager, and the optional chime.
package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dickwu/noticewin/internal/audio"
	"github.com/dickwu/noticewin/internal/broadcast"
	"github.com/dickwu/noticewin/internal/config"
	"github.com/dickwu/noticewin/internal/display"
	"github.com/dickwu/noticewin/internal/model"
	"github.com/dickwu/noticewin/internal/queue"
	"github.com/dickwu/noticewin/internal/store"
)

// Options configures a Daemon.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string

	// Surface is the window collaborator. Required.
	Surface display.Surface

	// Screen reports display metrics; nil falls back to the configured
	// resolution.
	Screen func() display.Screen

	Logger *slog.Logger
}

// Daemon owns the presenter process lifecycle.
type Daemon struct {
	logger *slog.Logger
	cfg    *config.Config

	st    *store.Store
	qs    *queue.State
	bus   *broadcast.Bus
	mgr   *display.Manager
	chime *audio.Chime
}

// New builds the component graph. Nothing starts until Run.
func New(opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("daemon: no window surface provided")
	}

	cfg, err := config.Load(opts.ConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("daemon: load config: %w", err)
	}

	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("daemon: ensure data dir: %w", err)
	}

	storePath, err := config.StorePath()
	if err != nil {
		return nil, fmt.Errorf("daemon: resolve store path: %w", err)
	}
	st, err := store.Open(storePath, cfg.StoreName)
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}

	statePath, err := config.StatePath()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("daemon: resolve state path: %w", err)
	}
	bus, err := broadcast.New(statePath, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("daemon: create broadcast bus: %w", err)
	}

	qs := queue.New(st, logger)
	mgr := display.NewManager(cfg, st, qs, opts.Surface, logger)
	if opts.Screen != nil {
		mgr.SetScreenProvider(opts.Screen)
	}

	chime := audio.NewChime(cfg.Audio, logger)

	d := &Daemon{
		logger: logger,
		cfg:    cfg,
		st:     st,
		qs:     qs,
		bus:    bus,
		mgr:    mgr,
		chime:  chime,
	}
	d.wire()
	return d, nil
}

// wire connects the components. Local mutations flow out through the bus;
// remote snapshots flow in as state replacement. The remote-apply path never
// publishes, so the two directions cannot form a feedback loop.
func (d *Daemon) wire() {
	d.qs.SetPublisher(d.bus.Publish)
	d.bus.SetApply(d.qs.ApplyRemote)

	if d.chime.Enabled() {
		d.mgr.SetOnShow(func(msg *model.Message) {
			go d.chime.Play()
		})
	}
}

// Run starts the daemon and blocks until ctx is cancelled. Messages left
// pending from a previous session are restored and presentation resumes with
// the first of them.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting noticewind",
		"store", d.st.Path(), "origin", d.bus.Origin())

	if err := d.mgr.Start(); err != nil {
		return fmt.Errorf("daemon: start display manager: %w", err)
	}
	if err := d.bus.Start(); err != nil {
		d.mgr.Stop()
		return fmt.Errorf("daemon: start broadcast bus: %w", err)
	}

	if err := d.qs.InitializeFromStore(); err != nil {
		d.mgr.Stop()
		_ = d.bus.Stop()
		return fmt.Errorf("daemon: restore queue: %w", err)
	}

	status := d.qs.Query()
	d.logger.Info("noticewind ready",
		"pending", status.QueueLength, "current", status.CurrentID)

	<-ctx.Done()
	d.logger.Info("shutting down")
	return d.shutdown()
}

// Queue exposes the queue state for the surface collaborator's callbacks.
func (d *Daemon) Queue() *queue.State {
	return d.qs
}

// Display exposes the display manager so the surface collaborator can report
// window closures through HandleClosed.
func (d *Daemon) Display() *display.Manager {
	return d.mgr
}

// Config returns the loaded configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}

// shutdown stops components in reverse dependency order.
func (d *Daemon) shutdown() error {
	d.mgr.Stop()
	if err := d.bus.Stop(); err != nil {
		d.logger.Warn("error stopping broadcast bus", "error", err)
	}
	if err := d.qs.Close(); err != nil {
		d.logger.Warn("error closing queue state", "error", err)
	}
	d.chime.Close()
	if err := d.st.Close(); err != nil {
		return fmt.Errorf("daemon: close store: %w", err)
	}
	d.logger.Info("noticewind stopped")
	return nil
}

package display

import (
	"log/slog"
	"sync"

	"github.com/dickwu/noticewin/internal/config"
	"github.com/dickwu/noticewin/internal/model"
	"github.com/dickwu/noticewin/internal/queue"
	"github.com/dickwu/noticewin/internal/store"
)

// Surface is the external window collaborator. The real implementation wraps
// whatever window toolkit the host application uses; the coordination core
// only depends on this contract.
//
// Open presents a window for the message at the resolved geometry, rendering
// the template identified by route. A message whose content cannot be loaded
// must still be presented as a "failed to load" window rather than a blank or
// crashed one; Open returns an error only when no window could be shown at
// all. Close requests closure of the window for id; the collaborator must
// report the eventual closure back through Manager.HandleClosed regardless of
// what caused it.
type Surface interface {
	Open(msg *model.Message, route string, geom Geometry) error
	Close(id string) error
}

// Manager drives the Surface from queue state changes.
//
// It subscribes to the queue's current-message events and edge-detects
// identity changes, so a sync tick that does not change the current message
// never re-opens a window. The idempotent open check against the active
// surface set is what resolves cross-context races: two contexts may both
// decide to show, but only the first open wins.
type Manager struct {
	logger  *slog.Logger
	cfg     *config.Config
	st      *store.Store
	qs      *queue.State
	surface Surface

	// screen reports display metrics; nil or a zero size falls back to the
	// configured resolution.
	screen func() Screen

	// onShow runs after a window opens (used for the chime).
	onShow func(*model.Message)

	mu      sync.Mutex
	events  <-chan queue.Event
	done    chan struct{}
	running bool
}

// NewManager creates a display manager.
func NewManager(cfg *config.Config, st *store.Store, qs *queue.State, surface Surface, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger,
		cfg:     cfg,
		st:      st,
		qs:      qs,
		surface: surface,
	}
}

// SetScreenProvider installs a display metrics source.
func (m *Manager) SetScreenProvider(fn func() Screen) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screen = fn
}

// SetOnShow installs a hook that runs after each successful window open.
func (m *Manager) SetOnShow(fn func(*model.Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onShow = fn
}

// Start subscribes to the queue and begins handling events.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.events = m.qs.Subscribe()
	m.done = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	go m.loop()
	return nil
}

func (m *Manager) loop() {
	for {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return
			}
			m.HandleEvent(ev)
		case <-m.done:
			return
		}
	}
}

// Stop unsubscribes and stops the event loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	close(m.done)
	m.qs.Unsubscribe(m.events)
}

// HandleEvent reacts to one current-message change. Exported for tests and
// for callers that pump events themselves.
func (m *Manager) HandleEvent(ev queue.Event) {
	// A previous message that is no longer current but still has a window
	// open was revoked (or superseded by a remote context): ask the
	// collaborator to close it. The closure report comes back through
	// HandleClosed.
	if ev.Previous != "" && (ev.Current == nil || ev.Current.ID != ev.Previous) {
		if m.qs.IsSurfaceActive(ev.Previous) {
			if err := m.surface.Close(ev.Previous); err != nil {
				m.logger.Warn("failed to close window", "id", ev.Previous, "error", err)
			}
		}
	}

	if ev.Current != nil {
		m.show(ev.Current)
	}
}

// show opens a window for msg unless one is already open for its id.
func (m *Manager) show(msg *model.Message) {
	if m.qs.IsSurfaceActive(msg.ID) {
		m.logger.Debug("window already open", "id", msg.ID)
		return
	}
	m.qs.AddActiveSurface(msg.ID)

	geom := Resolve(msg, m.cfg, m.screenSize())
	route := m.cfg.Route(msg.Kind)

	if err := m.surface.Open(msg, route, geom); err != nil {
		// One bad message must not block the rest: release tracking state
		// and advance the queue.
		m.logger.Warn("failed to open window", "id", msg.ID, "error", err)
		m.qs.RemoveActiveSurface(msg.ID)
		if err := m.qs.ClearCurrent(); err != nil {
			m.logger.Error("failed to advance queue", "id", msg.ID, "error", err)
		}
		return
	}

	m.logger.Debug("window opened", "id", msg.ID, "route", route,
		"x", geom.X, "y", geom.Y, "width", geom.Width, "height", geom.Height)

	m.mu.Lock()
	onShow := m.onShow
	m.mu.Unlock()
	if onShow != nil {
		onShow(msg)
	}
}

// HandleClosed processes a window-closed report from the collaborator.
//
// Order matters: the id leaves the active set first, then the row is marked
// shown, then the queue advances, so a concurrent IsSurfaceActive check can
// never observe a closed window as still active. Rows already hidden keep
// their status (MarkShown skips terminal rows). The queue is advanced only if
// the closed window still owns the current slot; when a revocation already
// moved the queue on, clearing again would wrongly discard the successor.
func (m *Manager) HandleClosed(id any) error {
	cid := model.CanonicalID(id)

	m.qs.RemoveActiveSurface(cid)

	if err := m.st.MarkShown(cid); err != nil {
		return err
	}

	cur := m.qs.Query().CurrentID
	if cur == "" || cur == cid {
		return m.qs.ClearCurrent()
	}
	return nil
}

func (m *Manager) screenSize() Screen {
	m.mu.Lock()
	fn := m.screen
	m.mu.Unlock()

	if fn == nil {
		return Screen{}
	}
	return fn()
}

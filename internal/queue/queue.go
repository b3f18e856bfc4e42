// Package queue implements the message coordination core: the ordered,
// persisted state machine that decides which message is currently shown,
// serializes presentation, and survives restarts.
//
// One State instance is owned per execution context (process). Its source of
// truth is the durable store; the broadcast bus keeps instances in separate
// contexts eventually consistent. There is no ambient global: callers
// construct a State with its store injected and pass it by reference.
package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dickwu/noticewin/internal/model"
	"github.com/dickwu/noticewin/internal/store"
)

// Errors.
var (
	ErrStateClosed    = errors.New("queue state is closed")
	ErrNotInitialized = errors.New("queue state is not initialized")
)

// Event signals that the identity of the current message changed.
// Subscribers receive one event per genuine change, never one per sync tick.
type Event struct {
	// Previous is the canonical id of the message that was current before
	// the change, or empty.
	Previous string
	// Current is the message now being shown, or nil when the queue went idle.
	Current *model.Message
}

// Snapshot is the full replicable queue state, broadcast between contexts
// and applied as a local state replacement (last write wins).
type Snapshot struct {
	Queue   []model.Message `json:"queue"`
	Current *model.Message  `json:"current,omitempty"`
	Busy    bool            `json:"busy"`
}

// Status is a read-only view for UI display.
type Status struct {
	QueueLength  int    `json:"queue_length"`
	CurrentID    string `json:"current_id,omitempty"`
	CurrentTitle string `json:"current_title,omitempty"`
	Busy         bool   `json:"busy"`
}

// Publisher receives a state snapshot after every local mutation so it can be
// broadcast to other contexts.
type Publisher func(Snapshot)

// State is the authoritative in-memory queue model for one context.
//
// A single mutex serializes every public operation, so two mutations of
// queue/busy never interleave within a context. Across
// contexts there is no lock at all; races are resolved by the idempotent
// surface-open check at the display boundary, not here.
type State struct {
	mu     sync.Mutex
	logger *slog.Logger

	st *store.Store

	queue       []model.Message
	current     *model.Message
	busy        bool
	active      map[string]struct{}
	initialized bool
	closed      bool

	publish     Publisher
	subscribers []chan Event
}

// New creates a State backed by the given durable store.
func New(st *store.Store, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		logger: logger,
		st:     st,
		active: make(map[string]struct{}),
	}
}

// SetPublisher installs the outbound synchronizer hook. Must be set before
// the state is driven; a nil publisher disables broadcasting.
func (s *State) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish = p
}

// InitializeFromStore loads all pending rows ordered by position into the
// queue. A row left showing by another context (or a previous run of this one)
// is restored as the current message instead of popping a new head, so a
// short-lived context initializing alongside a presenter never steals the
// current slot. With no showing row the first pending message is shown.
// Idempotent: repeated calls are no-ops until ClearAll resets the instance.
// Must run before Enqueue.
func (s *State) InitializeFromStore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	if s.initialized {
		return nil
	}

	rows, err := s.st.ListPending()
	if err != nil {
		return fmt.Errorf("queue: initialize: %w", err)
	}

	s.queue = s.queue[:0]
	for _, row := range rows {
		s.queue = append(s.queue, row.Message)
	}
	s.initialized = true

	showing, err := s.st.Showing()
	if err != nil {
		return fmt.Errorf("queue: initialize: %w", err)
	}

	s.logger.Debug("queue initialized from store",
		"pending", len(s.queue), "showing", showing != nil)

	if showing != nil {
		s.current = &showing.Message
		s.busy = true
		s.notify(Event{Current: s.current.Clone()})
	} else if len(s.queue) > 0 {
		if err := s.showNext(""); err != nil {
			return err
		}
	}
	s.publishLocked()
	return nil
}

// Enqueue persists and queues a message, suppressing duplicates by canonical
// id against both the store and the in-memory queue. If the queue is idle the
// message is shown immediately.
func (s *State) Enqueue(msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	if !s.initialized {
		return ErrNotInitialized
	}

	msg.Canonicalize()
	if msg.ID == "" {
		return model.ErrEmptyID
	}

	// A duplicate is anything already known: queued, showing, or a store row
	// from an earlier delivery. A shown or hidden id is history and is never
	// resurrected by a re-send.
	exists, err := s.st.Exists(msg.ID)
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", msg.ID, err)
	}
	if exists || s.inQueue(msg.ID) || s.isCurrent(msg.ID) {
		s.logger.Debug("duplicate enqueue suppressed", "id", msg.ID)
		return nil
	}

	if err := s.st.Put(model.NewStoredMessage(msg, len(s.queue))); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", msg.ID, err)
	}

	s.queue = append(s.queue, msg)
	if err := s.persistPositions(); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", msg.ID, err)
	}

	s.logger.Debug("message enqueued", "id", msg.ID, "queue_length", len(s.queue))

	if !s.busy && s.current == nil {
		if err := s.showNext(""); err != nil {
			return err
		}
	}
	s.publishLocked()
	return nil
}

// showNext pops the queue head and makes it current. prev is the id that was
// current before the caller released it, threaded through so the change event
// carries the true edge. Caller must hold the mutex.
func (s *State) showNext(prev string) error {
	if s.busy {
		return nil
	}
	if len(s.queue) == 0 {
		s.busy = false
		s.current = nil
		return nil
	}

	head := s.queue[0]
	s.queue = s.queue[1:]
	s.current = &head
	s.busy = true

	if err := s.st.SetStatus(head.ID, model.StatusShowing); err != nil {
		return fmt.Errorf("queue: show %s: %w", head.ID, err)
	}
	if err := s.persistPositions(); err != nil {
		return fmt.Errorf("queue: show %s: %w", head.ID, err)
	}

	s.logger.Debug("message showing", "id", head.ID, "remaining", len(s.queue))
	s.notify(Event{Previous: prev, Current: s.current.Clone()})
	return nil
}

// ClearCurrent unconditionally clears the current message and the busy flag,
// then advances to the next pending message if any. This is the sole
// mechanism for moving the queue forward after a window closes.
func (s *State) ClearCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	prev := s.currentID()
	s.current = nil
	s.busy = false

	if len(s.queue) > 0 {
		if err := s.showNext(prev); err != nil {
			return err
		}
	} else if prev != "" {
		s.notify(Event{Previous: prev, Current: nil})
	}
	s.publishLocked()
	return nil
}

// ClearAll resets the context: empties the queue, clears the current message,
// the busy flag and the active surface set, resets the initialized flag, and
// deletes every pending/showing row from the store. No message survives.
func (s *State) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	prev := s.currentID()
	s.queue = nil
	s.current = nil
	s.busy = false
	s.active = make(map[string]struct{})
	s.initialized = false

	if err := s.st.DeleteWhereStatusIn(model.StatusPending, model.StatusShowing); err != nil {
		return fmt.Errorf("queue: clear all: %w", err)
	}

	if prev != "" {
		s.notify(Event{Previous: prev, Current: nil})
	}
	s.publishLocked()
	s.logger.Debug("queue cleared")
	return nil
}

// Hide revokes a message by id. An id absent from the store is a no-op.
// The row is marked hidden; if the message is currently showing the queue
// advances, otherwise it is removed from the pending queue.
func (s *State) Hide(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	id = model.CanonicalID(id)
	row, err := s.st.Get(id)
	if err != nil {
		return fmt.Errorf("queue: hide %s: %w", id, err)
	}
	if row == nil {
		return nil
	}

	if err := s.st.MarkHidden(id); err != nil {
		return fmt.Errorf("queue: hide %s: %w", id, err)
	}

	if s.isCurrent(id) {
		prev := s.currentID()
		s.current = nil
		s.busy = false
		if len(s.queue) > 0 {
			if err := s.showNext(prev); err != nil {
				return err
			}
		} else {
			s.notify(Event{Previous: prev, Current: nil})
		}
	} else if s.inQueue(id) {
		s.removeFromQueue(id)
		if err := s.persistPositions(); err != nil {
			return fmt.Errorf("queue: hide %s: %w", id, err)
		}
	}

	s.publishLocked()
	s.logger.Debug("message hidden", "id", id)
	return nil
}

// HideAll revokes every pending and showing message. Used at session end.
func (s *State) HideAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	prev := s.currentID()
	if prev != "" {
		if err := s.st.MarkHidden(prev); err != nil {
			return fmt.Errorf("queue: hide all: %w", err)
		}
	}
	for _, m := range s.queue {
		if err := s.st.MarkHidden(m.ID); err != nil {
			return fmt.Errorf("queue: hide all: %w", err)
		}
	}

	s.queue = nil
	s.current = nil
	s.busy = false

	if prev != "" {
		s.notify(Event{Previous: prev, Current: nil})
	}
	s.publishLocked()
	s.logger.Debug("all messages hidden")
	return nil
}

// AddActiveSurface records that a window is open for id.
func (s *State) AddActiveSurface(id any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[model.CanonicalID(id)] = struct{}{}
}

// RemoveActiveSurface records that the window for id is gone.
func (s *State) RemoveActiveSurface(id any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, model.CanonicalID(id))
}

// IsSurfaceActive reports whether a window is open for id. Ids are coerced to
// canonical form, so producers passing numeric ids compare correctly.
func (s *State) IsSurfaceActive(id any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[model.CanonicalID(id)]
	return ok
}

// Query returns a read-only status snapshot for UI display.
func (s *State) Query() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		QueueLength: len(s.queue),
		Busy:        s.busy,
	}
	if s.current != nil {
		st.CurrentID = s.current.ID
		st.CurrentTitle = s.current.Title
	}
	return st
}

// SnapshotState returns the full replicable state.
func (s *State) SnapshotState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ApplyRemote replaces the local queue, current message and busy flag with a
// snapshot received from another context. The remote-apply path is kept
// strictly separate from local mutation: nothing is persisted and nothing is
// re-broadcast, so a received update can never echo back out. Subscribers get
// an edge event only if the current message identity actually changed.
func (s *State) ApplyRemote(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	prev := s.currentID()

	s.queue = make([]model.Message, len(snap.Queue))
	copy(s.queue, snap.Queue)
	s.current = snap.Current
	s.busy = snap.Busy

	next := s.currentID()
	if prev != next {
		var cur *model.Message
		if s.current != nil {
			cur = s.current.Clone()
		}
		s.notify(Event{Previous: prev, Current: cur})
	}
}

// Subscribe returns a channel that receives current-message change events.
func (s *State) Subscribe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, 10)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *State) Unsubscribe(ch <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close releases subscriber channels. The store is owned by the caller and is
// not closed here.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	return nil
}

// ---- helpers (mutex held) --------------------------------------------------

func (s *State) currentID() string {
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

func (s *State) isCurrent(id string) bool {
	return s.current != nil && s.current.ID == id
}

func (s *State) inQueue(id string) bool {
	for _, m := range s.queue {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *State) removeFromQueue(id string) {
	for i, m := range s.queue {
		if m.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// persistPositions reassigns stored queue positions to the current array
// indices. Ties are impossible because positions are exact indices.
func (s *State) persistPositions() error {
	ids := make([]string, len(s.queue))
	for i, m := range s.queue {
		ids[i] = m.ID
	}
	return s.st.SetPositions(ids)
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{
		Queue: make([]model.Message, len(s.queue)),
		Busy:  s.busy,
	}
	copy(snap.Queue, s.queue)
	if s.current != nil {
		snap.Current = s.current.Clone()
	}
	return snap
}

func (s *State) publishLocked() {
	if s.publish == nil {
		return
	}
	s.publish(s.snapshotLocked())
}

// notify sends an event to all subscribers (non-blocking).
func (s *State) notify(event Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// Package broadcast propagates queue state between contexts.
//
// Contexts are independent processes (the presenter daemon, short-lived CLI
// invocations) that share one data directory. Every local queue mutation is
// written as a snapshot envelope to a shared state file; every other context
// watches that file and applies incoming snapshots as a local state
// replacement. Conflict policy is last write wins at snapshot granularity:
// producers mutate the queue synchronously before yielding, so broadcast
// order approximates causal order and no merge logic is needed.
package broadcast

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/dickwu/noticewin/internal/queue"
)

// Envelope is the wire form of a broadcast snapshot.
type Envelope struct {
	// Origin identifies the publishing context, so a context can ignore its
	// own writes instead of feeding them back into its queue.
	Origin string `json:"origin"`

	// Sequence increases monotonically per origin; stale envelopes are
	// dropped.
	Sequence uint64 `json:"sequence"`

	PublishedAt int64          `json:"published_at"`
	State       queue.Snapshot `json:"state"`
}

// ApplyFunc receives a remote snapshot for local state replacement.
type ApplyFunc func(queue.Snapshot)

// Bus publishes and receives queue snapshots through a shared state file.
type Bus struct {
	mu     sync.Mutex
	logger *slog.Logger

	path   string
	origin string

	sequence uint64
	seen     map[string]uint64 // origin -> last applied sequence

	apply   ApplyFunc
	watcher *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// New creates a Bus for the shared state file at path.
// Each Bus gets a fresh origin id for the lifetime of its process.
func New(path string, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	origin, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("broadcast: generate origin id: %w", err)
	}

	return &Bus{
		logger: logger,
		path:   path,
		origin: origin.String(),
		seen:   make(map[string]uint64),
	}, nil
}

// Origin returns this context's origin id.
func (b *Bus) Origin() string {
	return b.origin
}

// SetApply installs the handler for incoming snapshots. Must be set before
// Start.
func (b *Bus) SetApply(fn ApplyFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply = fn
}

// Publish writes a snapshot envelope to the shared file, atomically via a
// temp file + rename so watchers never observe a partial write.
//
// Publish failures are logged rather than propagated: the durable store is
// the source of truth and other contexts self-heal from it on their next
// initialize, so a missed broadcast degrades freshness, not correctness.
func (b *Bus) Publish(snap queue.Snapshot) {
	b.mu.Lock()
	b.sequence++
	env := Envelope{
		Origin:      b.origin,
		Sequence:    b.sequence,
		PublishedAt: time.Now().Unix(),
		State:       snap,
	}
	b.mu.Unlock()

	if err := b.write(env); err != nil {
		b.logger.Warn("failed to publish state snapshot", "error", err)
	}
}

func (b *Bus) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmpPath := b.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	return os.Rename(tmpPath, b.path)
}

// Start begins watching the state file for snapshots from other contexts.
// The directory is watched rather than the file itself, which survives the
// rename dance of atomic writes.
func (b *Bus) Start() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("broadcast: create watcher: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		_ = watcher.Close()
		b.mu.Unlock()
		return fmt.Errorf("broadcast: create dir %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		b.mu.Unlock()
		return fmt.Errorf("broadcast: watch %s: %w", dir, err)
	}

	b.watcher = watcher
	b.done = make(chan struct{})
	b.running = true
	b.mu.Unlock()

	go b.watch()
	return nil
}

// watch is the main watch loop.
func (b *Bus) watch() {
	filename := filepath.Base(b.path)

	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				b.dispatch()
			}

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("broadcast watcher error", "error", err)

		case <-b.done:
			return
		}
	}
}

// dispatch loads the current envelope and hands it to the apply handler.
// Own writes and stale sequence numbers are skipped; decode failures are
// logged and skipped because the store self-heals on the next initialize.
func (b *Bus) dispatch() {
	env, err := b.load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("failed to load state snapshot", "error", err)
		}
		return
	}

	b.mu.Lock()
	if env.Origin == b.origin {
		b.mu.Unlock()
		return
	}
	if last, ok := b.seen[env.Origin]; ok && env.Sequence <= last {
		b.mu.Unlock()
		return
	}
	b.seen[env.Origin] = env.Sequence
	apply := b.apply
	b.mu.Unlock()

	if apply == nil {
		return
	}

	b.logger.Debug("applying remote snapshot",
		"origin", env.Origin, "sequence", env.Sequence)
	apply(env.State)
}

func (b *Bus) load() (*Envelope, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}

// Stop stops the watch loop and closes the watcher.
func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}
	b.running = false
	close(b.done)
	return b.watcher.Close()
}

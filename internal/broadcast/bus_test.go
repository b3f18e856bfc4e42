package broadcast

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dickwu/noticewin/internal/model"
	"github.com/dickwu/noticewin/internal/queue"
)

func newTestBus(t *testing.T, path string) *Bus {
	t.Helper()
	b, err := New(path, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func snapshotWith(id string) queue.Snapshot {
	cur := model.Message{ID: id, Title: "Title " + id, Kind: "info"}
	return queue.Snapshot{Current: &cur, Busy: true}
}

func TestBus_DistinctOrigins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	a := newTestBus(t, path)
	b := newTestBus(t, path)
	assert.NotEqual(t, a.Origin(), b.Origin())
}

func TestBus_PublishAndReceive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	sender := newTestBus(t, path)
	receiver := newTestBus(t, path)

	received := make(chan queue.Snapshot, 10)
	receiver.SetApply(func(snap queue.Snapshot) { received <- snap })
	require.NoError(t, receiver.Start())

	sender.Publish(snapshotWith("m1"))

	select {
	case snap := <-received:
		require.NotNil(t, snap.Current)
		assert.Equal(t, "m1", snap.Current.ID)
		assert.True(t, snap.Busy)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
}

func TestBus_IgnoresOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	b := newTestBus(t, path)

	received := make(chan queue.Snapshot, 10)
	b.SetApply(func(snap queue.Snapshot) { received <- snap })
	require.NoError(t, b.Start())

	b.Publish(snapshotWith("m1"))

	select {
	case snap := <-received:
		t.Fatalf("own write fed back: %+v", snap)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestBus_DropsStaleSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	b := newTestBus(t, path)

	var applied int
	b.SetApply(func(queue.Snapshot) { applied++ })

	env := Envelope{Origin: "other", Sequence: 5, State: snapshotWith("m1")}
	require.NoError(t, b.write(env))
	b.dispatch()
	assert.Equal(t, 1, applied)

	// Same sequence again: dropped.
	b.dispatch()
	assert.Equal(t, 1, applied)

	// Older sequence: dropped.
	env.Sequence = 3
	require.NoError(t, b.write(env))
	b.dispatch()
	assert.Equal(t, 1, applied)

	// Newer sequence: applied.
	env.Sequence = 6
	require.NoError(t, b.write(env))
	b.dispatch()
	assert.Equal(t, 2, applied)
}

func TestBus_CorruptFileSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	b := newTestBus(t, path)

	var applied int
	b.SetApply(func(queue.Snapshot) { applied++ })

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	b.dispatch()
	assert.Zero(t, applied)
}

func TestBus_ConvergenceAcrossStates(t *testing.T) {
	// Two queue states in one process standing in for two window contexts:
	// after a broadcast round-trip both report the same current message.
	path := filepath.Join(t.TempDir(), "state.json")
	sender := newTestBus(t, path)
	receiver := newTestBus(t, path)

	applied := make(chan struct{}, 10)

	remote := queue.Snapshot{}
	receiver.SetApply(func(snap queue.Snapshot) {
		remote = snap
		applied <- struct{}{}
	})
	require.NoError(t, receiver.Start())

	local := snapshotWith("m1")
	local.Queue = []model.Message{{ID: "m2", Kind: "info"}}
	sender.Publish(local)

	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for convergence")
	}

	require.NotNil(t, remote.Current)
	assert.Equal(t, "m1", remote.Current.ID)
	require.Len(t, remote.Queue, 1)
	assert.Equal(t, "m2", remote.Queue[0].ID)
}

func TestBus_StartIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	b := newTestBus(t, path)

	require.NoError(t, b.Start())
	require.NoError(t, b.Start())
	require.NoError(t, b.Stop())
	require.NoError(t, b.Stop())
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dickwu/noticewin/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "messages.db"), "noticewin")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stored(id string, status model.QueueStatus, pos int) model.StoredMessage {
	sm := model.NewStoredMessage(model.Message{ID: id, Kind: "info"}, pos)
	sm.QueueStatus = status
	return sm
}

func TestOpen_EmptyBucket(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "messages.db"), "")
	assert.Error(t, err)
}

func TestStore_PutGet(t *testing.T) {
	s := openTestStore(t)

	sm := model.NewStoredMessage(model.Message{ID: "m1", Title: "Hi", Kind: "info"}, 0)
	require.NoError(t, s.Put(sm))

	got, err := s.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hi", got.Title)
	assert.Equal(t, model.StatusPending, got.QueueStatus)

	// Overwrite is allowed and replaces the row.
	sm.Title = "Hello"
	require.NoError(t, s.Put(sm))
	got, err = s.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_GetAbsent(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Exists(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.Exists("m1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(model.NewStoredMessage(model.Message{ID: "m1", Kind: "info"}, 0)))

	ok, err = s.Exists("m1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_CanonicalKeys(t *testing.T) {
	s := openTestStore(t)

	// A numeric id and its string form are the same row.
	sm := model.NewStoredMessage(model.Message{ID: model.CanonicalID(42), Kind: "info"}, 0)
	require.NoError(t, s.Put(sm))

	ok, err := s.Exists("42")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ListPending(t *testing.T) {
	s := openTestStore(t)

	// Insert out of position order plus non-pending rows.
	require.NoError(t, s.Put(stored("b", model.StatusPending, 1)))
	require.NoError(t, s.Put(stored("c", model.StatusShown, 0)))
	require.NoError(t, s.Put(stored("a", model.StatusPending, 0)))
	require.NoError(t, s.Put(stored("d", model.StatusShowing, 2)))

	pending, err := s.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "b", pending[1].ID)
}

func TestStore_SetStatus(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(stored("m1", model.StatusPending, 0)))
	require.NoError(t, s.SetStatus("m1", model.StatusShowing))

	got, err := s.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusShowing, got.QueueStatus)

	// Absent id is a no-op.
	assert.NoError(t, s.SetStatus("ghost", model.StatusShown))
}

func TestStore_MarkShown(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(stored("m1", model.StatusShowing, 0)))
	require.NoError(t, s.MarkShown("m1"))

	got, err := s.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusShown, got.QueueStatus)
}

func TestStore_MarkShown_KeepsHidden(t *testing.T) {
	s := openTestStore(t)

	// A message hidden while on screen stays hidden when its window closes.
	require.NoError(t, s.Put(stored("m1", model.StatusHidden, 0)))
	require.NoError(t, s.MarkShown("m1"))

	got, err := s.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusHidden, got.QueueStatus)
}

func TestStore_MarkHidden(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(stored("m1", model.StatusPending, 0)))
	require.NoError(t, s.MarkHidden("m1"))

	got, err := s.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusHidden, got.QueueStatus)
}

func TestStore_DeleteWhereStatusIn(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(stored("p", model.StatusPending, 0)))
	require.NoError(t, s.Put(stored("s", model.StatusShowing, 1)))
	require.NoError(t, s.Put(stored("done", model.StatusShown, 2)))
	require.NoError(t, s.Put(stored("gone", model.StatusHidden, 3)))

	require.NoError(t, s.DeleteWhereStatusIn(model.StatusPending, model.StatusShowing))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{"p", "s"} {
		ok, err := s.Exists(id)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}
	for _, id := range []string{"done", "gone"} {
		ok, err := s.Exists(id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}
}

func TestStore_SetPositions(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(stored("a", model.StatusPending, 5)))
	require.NoError(t, s.Put(stored("b", model.StatusPending, 9)))
	require.NoError(t, s.Put(stored("c", model.StatusPending, 1)))

	// New order: c, a, b. Unknown ids are skipped.
	require.NoError(t, s.SetPositions([]string{"c", "a", "b", "ghost"}))

	pending, err := s.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "c", pending[0].ID)
	assert.Equal(t, "a", pending[1].ID)
	assert.Equal(t, "b", pending[2].ID)
	assert.Equal(t, 0, pending[0].QueuePosition)
	assert.Equal(t, 2, pending[2].QueuePosition)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.db")

	s, err := Open(path, "noticewin")
	require.NoError(t, err)
	require.NoError(t, s.Put(stored("m1", model.StatusPending, 0)))
	require.NoError(t, s.Close())

	s2, err := Open(path, "noticewin")
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusPending, got.QueueStatus)
}

func TestStore_Showing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Showing()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(stored("m1", model.StatusPending, 0)))
	got, err = s.Showing()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(stored("m2", model.StatusShowing, 1)))
	got, err = s.Showing()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m2", got.ID)
}

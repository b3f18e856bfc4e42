// Package store provides the durable message store for noticewin.
//
// It is a single-bucket key-value table: one JSON-encoded StoredMessage per
// canonical message id. bbolt is used because it is pure Go, ACID, and a
// single file that multiple short-lived CLI contexts can open in turn.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/dickwu/noticewin/internal/model"
)

// Errors.
var (
	ErrStoreClosed = errors.New("store is closed")
)

// Store is the bbolt-backed durable message table.
// All methods are safe for concurrent use; every write is a single-row or
// small-batch upsert inside one transaction. Storage errors always propagate
// to the caller; a silently lost status write can wedge the queue.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

// Open opens (or creates) the store at path. The bucket name namespaces the
// table so several applications can share one database file.
func Open(path, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("store: bucket name cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 0})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	name := []byte(bucket)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init bucket %s: %w", bucket, err)
	}

	return &Store{db: db, bucket: name}, nil
}

// Put inserts or replaces a stored message by id. Overwriting is allowed;
// it is how status fields are updated.
func (s *Store) Put(sm model.StoredMessage) error {
	sm.Canonicalize()
	if sm.ID == "" {
		return model.ErrEmptyID
	}

	val, err := json.Marshal(sm)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", sm.ID, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(sm.ID), val)
	})
	if err != nil {
		return fmt.Errorf("store: put %s: %w", sm.ID, err)
	}
	return nil
}

// Exists reports whether a row exists for id.
func (s *Store) Exists(id string) (bool, error) {
	id = model.CanonicalID(id)

	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(s.bucket).Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store: exists %s: %w", id, err)
	}
	return found, nil
}

// Get retrieves the stored message for id, or nil if absent.
func (s *Store) Get(id string) (*model.StoredMessage, error) {
	id = model.CanonicalID(id)

	var sm *model.StoredMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(s.bucket).Get([]byte(id))
		if val == nil {
			return nil
		}
		var decoded model.StoredMessage
		if err := json.Unmarshal(val, &decoded); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		sm = &decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return sm, nil
}

// ListPending returns all pending rows ascending by queue position.
// Only the relative order matters; position values may have gaps.
func (s *Store) ListPending() ([]model.StoredMessage, error) {
	return s.listWhere(func(sm *model.StoredMessage) bool {
		return sm.QueueStatus == model.StatusPending
	})
}

// Showing returns the row currently marked showing, or nil if none. With the
// queue operating normally at most one row is showing at a time; if a crash
// left several, the lowest position wins.
func (s *Store) Showing() (*model.StoredMessage, error) {
	rows, err := s.listWhere(func(sm *model.StoredMessage) bool {
		return sm.QueueStatus == model.StatusShowing
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListAll returns every row, ascending by queue position.
func (s *Store) ListAll() ([]model.StoredMessage, error) {
	return s.listWhere(func(sm *model.StoredMessage) bool { return true })
}

func (s *Store) listWhere(keep func(*model.StoredMessage) bool) ([]model.StoredMessage, error) {
	var rows []model.StoredMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var sm model.StoredMessage
			if err := json.Unmarshal(v, &sm); err != nil {
				return fmt.Errorf("unmarshal %s: %w", k, err)
			}
			if keep(&sm) {
				rows = append(rows, sm)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].QueuePosition < rows[j].QueuePosition
	})
	return rows, nil
}

// SetStatus updates the queue status of a row. An absent id is a no-op,
// not an error.
func (s *Store) SetStatus(id string, status model.QueueStatus) error {
	id = model.CanonicalID(id)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		val := b.Get([]byte(id))
		if val == nil {
			return nil
		}
		var sm model.StoredMessage
		if err := json.Unmarshal(val, &sm); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		sm.QueueStatus = status
		updated, err := json.Marshal(sm)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return fmt.Errorf("store: set status %s=%s: %w", id, status, err)
	}
	return nil
}

// MarkShown records that the window for id closed after presentation.
// Rows already in a terminal state keep their status: a message hidden while
// on screen stays hidden when its window reports closure.
func (s *Store) MarkShown(id string) error {
	id = model.CanonicalID(id)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		val := b.Get([]byte(id))
		if val == nil {
			return nil
		}
		var sm model.StoredMessage
		if err := json.Unmarshal(val, &sm); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if sm.QueueStatus.Terminal() {
			return nil
		}
		sm.QueueStatus = model.StatusShown
		updated, err := json.Marshal(sm)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return fmt.Errorf("store: mark shown %s: %w", id, err)
	}
	return nil
}

// MarkHidden records that the message was revoked.
func (s *Store) MarkHidden(id string) error {
	return s.SetStatus(id, model.StatusHidden)
}

// DeleteWhereStatusIn bulk-deletes every row whose status matches one of the
// given statuses, in a single transaction. Used for logout and for clearing
// stale pending/showing rows.
func (s *Store) DeleteWhereStatusIn(statuses ...model.QueueStatus) error {
	match := make(map[model.QueueStatus]struct{}, len(statuses))
	for _, st := range statuses {
		match[st] = struct{}{}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)

		var doomed [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var sm model.StoredMessage
			if err := json.Unmarshal(v, &sm); err != nil {
				return fmt.Errorf("unmarshal %s: %w", k, err)
			}
			if _, ok := match[sm.QueueStatus]; ok {
				key := make([]byte, len(k))
				copy(key, k)
				doomed = append(doomed, key)
			}
			return nil
		}); err != nil {
			return err
		}

		for _, key := range doomed {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: delete by status: %w", err)
	}
	return nil
}

// SetPositions bulk-reassigns queue positions in a single transaction.
// The slice order is the new queue order: positions[i] gets position i.
// Ids absent from the store are skipped.
func (s *Store) SetPositions(ids []string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for i, raw := range ids {
			id := model.CanonicalID(raw)
			val := b.Get([]byte(id))
			if val == nil {
				continue
			}
			var sm model.StoredMessage
			if err := json.Unmarshal(val, &sm); err != nil {
				return fmt.Errorf("unmarshal %s: %w", id, err)
			}
			sm.QueuePosition = i
			updated, err := json.Marshal(sm)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", id, err)
			}
			if err := b.Put([]byte(id), updated); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: set positions: %w", err)
	}
	return nil
}

// Count returns the number of rows in the store.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

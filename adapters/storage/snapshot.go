// Package storage persists last-good search snapshots in an embedded bbolt
// store, so degraded mode can serve results across process restarts.
package storage

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"tariff-engine/internal/errors"
)

var snapshotBucket = []byte("snapshots")

// SnapshotStore is a durable key→payload table under the in-memory LRU.
type SnapshotStore struct {
	db *bolt.DB
}

// Open creates or opens the snapshot store at path.
func Open(path string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "failed to create snapshot directory", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "failed to open snapshot store", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Internal("failed to initialize snapshot bucket", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Close closes the underlying store.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Put writes the payload for a cache key, superseding any prior snapshot.
func (s *SnapshotStore) Put(key string, payload []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(key), payload)
	})
}

// Get reads the payload for a cache key; found is false when absent.
func (s *SnapshotStore) Get(key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotBucket).Get([]byte(key))
		if v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Internal("snapshot read failed", err)
	}
	return payload, payload != nil, nil
}

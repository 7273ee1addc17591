// internal/store/bolt.go - Bolt imagery cache store
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var imageryBucket = []byte("imagery")

// BoltStore keeps imagery in a single bbolt file
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(imageryBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create imagery bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) (*Entry, error) {
	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(imageryBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		// decodeEntry copies, v is only valid inside the transaction
		e, err := decodeEntry(v)
		entry = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *BoltStore) Put(_ context.Context, key string, entry *Entry) error {
	buf, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(imageryBucket).Put([]byte(key), buf)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Package bbolt mirrors session snapshots into a local BoltDB file.
// The mirror is best effort: game correctness never depends on it.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"songbingo/internal/app"
	"songbingo/internal/domain"
)

const sessionBucket = "sessions"

type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the store file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure session bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Persist writes one session snapshot, replacing any previous one.
func (s *Store) Persist(ctx context.Context, snap app.SessionSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.ID == "" {
		return fmt.Errorf("session id is required")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		return bucket.Put([]byte(snap.ID), payload)
	})
}

// Load fetches a session snapshot by id.
func (s *Store) Load(ctx context.Context, id domain.SessionID) (app.SessionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return app.SessionSnapshot{}, err
	}

	var snap app.SessionSnapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return fmt.Errorf("session bucket is missing")
		}
		payload := bucket.Get([]byte(id))
		if payload == nil {
			return app.ErrNotFound
		}
		return json.Unmarshal(payload, &snap)
	})
	if err != nil {
		return app.SessionSnapshot{}, err
	}
	return snap, nil
}

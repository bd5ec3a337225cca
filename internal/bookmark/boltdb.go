package bookmark

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "bookmarks"
)

// BoltDBStore implements Store using BoltDB
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore opens or creates the bookmark database
func NewBoltDBStore(dbPath string) (*BoltDBStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Debug().
		Str("db_path", dbPath).
		Msg("BoltDB bookmark store initialized")

	return &BoltDBStore{db: db}, nil
}

// Get retrieves the cursor saved under name for a log
func (s *BoltDBStore) Get(ctx context.Context, logID, name string) (int, error) {
	var cursor int

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := b.Get(makeKey(logID, name))
		if val == nil {
			return ErrNotFound
		}
		if len(val) < 8 {
			return fmt.Errorf("invalid cursor value")
		}

		cursor = int(binary.BigEndian.Uint64(val))
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get bookmark %q: %w", name, err)
	}

	return cursor, nil
}

// Set saves a cursor under name, replacing any previous value
func (s *BoltDBStore) Set(ctx context.Context, logID, name string, cursor int) error {
	if err := validate(logID, name); err != nil {
		return err
	}
	if cursor < 0 {
		return fmt.Errorf("invalid cursor %d", cursor)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(cursor))

		return b.Put(makeKey(logID, name), val)
	})

	if err != nil {
		return fmt.Errorf("failed to set bookmark: %w", err)
	}

	log.Debug().
		Str("log_id", logID).
		Str("name", name).
		Int("cursor", cursor).
		Msg("Bookmark saved")

	return nil
}

// Delete removes a bookmark
func (s *BoltDBStore) Delete(ctx context.Context, logID, name string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete(makeKey(logID, name))
	})

	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	return nil
}

// List returns the bookmarks of a log ordered by name
func (s *BoltDBStore) List(ctx context.Context, logID string) ([]Bookmark, error) {
	result := []Bookmark{}
	prefix := makeKey(logID, "")

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if len(v) < 8 {
				continue
			}
			result = append(result, Bookmark{
				LogID:  logID,
				Name:   string(k[len(prefix):]),
				Cursor: int(binary.BigEndian.Uint64(v)),
			})
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	return result, nil
}

// Close closes the BoltDB database
func (s *BoltDBStore) Close() error {
	log.Debug().Msg("Closing BoltDB bookmark store")
	return s.db.Close()
}

// makeKey creates a composite key from log id and bookmark name
func makeKey(logID, name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", logID, name))
}

func validate(logID, name string) error {
	if logID == "" || strings.Contains(logID, ":") {
		return fmt.Errorf("invalid log id %q", logID)
	}
	if name == "" {
		return fmt.Errorf("bookmark name is required")
	}
	return nil
}

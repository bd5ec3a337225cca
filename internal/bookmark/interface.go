package bookmark

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no bookmark has the given name
var ErrNotFound = errors.New("bookmark not found")

// Bookmark is a named replay cursor within one log
type Bookmark struct {
	LogID  string `json:"log_id"`
	Name   string `json:"name"`
	Cursor int    `json:"cursor"`
}

// Store persists replay bookmarks
// Implementations: BoltDB
type Store interface {
	// Get retrieves the cursor saved under name for a log
	Get(ctx context.Context, logID, name string) (int, error)

	// Set saves a cursor under name, replacing any previous value
	Set(ctx context.Context, logID, name string, cursor int) error

	// Delete removes a bookmark; deleting a missing bookmark is not an error
	Delete(ctx context.Context, logID, name string) error

	// List returns the bookmarks of a log ordered by name
	List(ctx context.Context, logID string) ([]Bookmark, error)

	// Close closes the store
	Close() error
}

package state

import "errors"

// ErrNotFound is returned when no sync state exists for a watched root.
var ErrNotFound = errors.New("sync state not found")

// Store persists SyncState records keyed by the canonical watched root.
// Callers always pass the complete state they want persisted; there is no
// merge logic in the store.
type Store interface {
	// Load returns the state for root, or ErrNotFound.
	Load(root string) (*SyncState, error)
	// Save overwrites the state for st.WatchFolder.
	Save(st *SyncState) error
	// Delete removes the state for root, or returns ErrNotFound.
	Delete(root string) error
	// List returns all known states.
	List() ([]*SyncState, error)
}

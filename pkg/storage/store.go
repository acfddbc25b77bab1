package storage

import (
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a document does not exist in a collection
var ErrNotFound = errors.New("storage: document not found")

// Store is the key-value substrate the portal persists through. Documents are
// JSON objects grouped into named collections and written whole; there is no
// partial-update operation. Implementations must be safe for concurrent use.
type Store interface {
	// List returns every document in the collection, in insertion order
	List(collection string) ([]json.RawMessage, error)

	// Get returns the document with the given id, or ErrNotFound
	Get(collection, id string) (json.RawMessage, error)

	// Put inserts or replaces the document with the given id
	Put(collection, id string, doc interface{}) error

	// Delete removes the document with the given id, or returns ErrNotFound
	Delete(collection, id string) error

	// Health reports whether the store is reachable
	Health() error
}

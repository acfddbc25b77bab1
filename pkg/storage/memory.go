package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store used for tests and demo deployments
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	docs  map[string]json.RawMessage
	order []string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// List returns every document in the collection, in insertion order
func (s *MemoryStore) List(collection string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}

	docs := make([]json.RawMessage, 0, len(col.order))
	for _, id := range col.order {
		docs = append(docs, col.docs[id])
	}
	return docs, nil
}

// Get returns the document with the given id, or ErrNotFound
func (s *MemoryStore) Get(collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}

	doc, ok := col.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Put inserts or replaces the document with the given id
func (s *MemoryStore) Put(collection, id string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		col = &memoryCollection{docs: make(map[string]json.RawMessage)}
		s.collections[collection] = col
	}

	if _, exists := col.docs[id]; !exists {
		col.order = append(col.order, id)
	}
	col.docs[id] = raw

	return nil
}

// Delete removes the document with the given id
func (s *MemoryStore) Delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}

	if _, exists := col.docs[id]; !exists {
		return ErrNotFound
	}
	delete(col.docs, id)

	for i, existing := range col.order {
		if existing == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	return nil
}

// Health always succeeds for the in-memory store
func (s *MemoryStore) Health() error {
	return nil
}

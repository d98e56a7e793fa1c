// Package registry holds the in-memory document and knowledge-base
// registries. Both are process-lifetime stores; nothing is persisted across
// restarts.
package registry

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("record not found")

// Store is the capability a registry needs from its backing storage. The
// in-memory implementation below is the default; a persistent one can be
// swapped in without touching handler logic.
type Store[T any] interface {
	Create(id string, value T) error
	Get(id string) (T, error)
	List() []T
	Update(id string, fn func(T) T) (T, error)
	Delete(id string) error
	Len() int
}

// MemoryStore is a synchronized in-memory Store implementation. Update runs
// its mutation function under the write lock, so read-modify-write sequences
// on one id cannot lose updates.
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{items: make(map[string]T)}
}

var _ Store[int] = (*MemoryStore[int])(nil)

// Create stores a new value under id. Ids are never reused; overwriting an
// existing id is a programming error and is rejected.
func (s *MemoryStore[T]) Create(id string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return errors.New("id already exists: " + id)
	}
	s.items[id] = value
	return nil
}

// Get returns the value stored under id.
func (s *MemoryStore[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.items[id]
	if !exists {
		var zero T
		return zero, ErrNotFound
	}
	return value, nil
}

// List returns all stored values in unspecified order.
func (s *MemoryStore[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]T, 0, len(s.items))
	for _, v := range s.items {
		values = append(values, v)
	}
	return values
}

// Update applies fn to the value stored under id and stores the result.
func (s *MemoryStore[T]) Update(id string, fn func(T) T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, exists := s.items[id]
	if !exists {
		var zero T
		return zero, ErrNotFound
	}
	updated := fn(value)
	s.items[id] = updated
	return updated, nil
}

// Delete removes the value stored under id.
func (s *MemoryStore[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// Len returns the number of stored values.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Package safeset provides a mutex-guarded set of comparable elements,
// used for small membership collections such as banned user ids.
package safeset

import "sync"

// SafeSet is a thread-safe set of unique elements of comparable type T.
// It is safe for concurrent use by multiple goroutines.
type SafeSet[T comparable] struct {
	m map[T]struct{}
	sync.RWMutex
}

// NewSafeSet creates and returns a new empty SafeSet.
func NewSafeSet[T comparable]() *SafeSet[T] {
	return &SafeSet[T]{m: make(map[T]struct{})}
}

// Add adds an element to the set. Adding an existing element is a no-op.
//
// Parameters:
//   - value: The element to add
func (s *SafeSet[T]) Add(value T) {
	s.Lock()
	defer s.Unlock()
	s.m[value] = struct{}{}
}

// Remove removes an element from the set. Removing a missing element is a no-op.
//
// Parameters:
//   - value: The element to remove
func (s *SafeSet[T]) Remove(value T) {
	s.Lock()
	defer s.Unlock()
	delete(s.m, value)
}

// Contains reports whether the set contains the given element.
//
// Parameters:
//   - value: The element to look up
//
// Returns:
//   - true if the set contains value, false otherwise
func (s *SafeSet[T]) Contains(value T) bool {
	s.RLock()
	defer s.RUnlock()
	_, ok := s.m[value]
	return ok
}

// Size returns the number of elements in the set.
//
// Returns:
//   - The number of elements in the set
func (s *SafeSet[T]) Size() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.m)
}

// Reset removes all elements from the set, leaving it empty.
func (s *SafeSet[T]) Reset() {
	s.Lock()
	defer s.Unlock()
	s.m = make(map[T]struct{})
}

// Values returns a copy of the set's elements in unspecified order.
//
// Returns:
//   - A new slice holding every element currently in the set
func (s *SafeSet[T]) Values() []T {
	s.RLock()
	defer s.RUnlock()

	out := make([]T, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}

	return out
}

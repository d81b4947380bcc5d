package guard

import "sync"

// KeySet is an in-process single-flight guard keyed by K. Acquire marks the
// key busy and reports whether the caller won it; a second caller observing
// the guard must return immediately. Holders release on all exit paths.
//
// This is cheap deduplication only: durable correctness comes from the
// repository's conditional updates.
type KeySet[K comparable] struct {
	mu   sync.Mutex
	busy map[K]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet[K comparable]() *KeySet[K] {
	return &KeySet[K]{busy: make(map[K]struct{})}
}

// Acquire marks key busy. Returns false if another holder already has it.
func (s *KeySet[K]) Acquire(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.busy[key]; held {
		return false
	}
	s.busy[key] = struct{}{}
	return true
}

// Release frees key. Safe to call for a key that is not held.
func (s *KeySet[K]) Release(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, key)
}

// Held reports whether key is currently acquired.
func (s *KeySet[K]) Held(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.busy[key]
	return held
}

// Len returns the number of held keys.
func (s *KeySet[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.busy)
}

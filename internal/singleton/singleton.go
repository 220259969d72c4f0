// Package singleton holds process-wide clients that are created on first use
// and kept for the lifetime of the process.
package singleton

import "sync"

// Handle lazily builds a value exactly once. A failed init is remembered and
// returned to every later caller; the handle is never rebuilt.
type Handle[T any] struct {
	once  sync.Once
	init  func() (T, error)
	value T
	err   error
	done  bool
	mu    sync.RWMutex
}

func New[T any](init func() (T, error)) *Handle[T] {
	return &Handle[T]{init: init}
}

// Get returns the value, running init on the first call. Concurrent first
// calls block until init finishes and observe the same result.
func (h *Handle[T]) Get() (T, error) {
	h.once.Do(func() {
		v, err := h.init()

		h.mu.Lock()
		h.value, h.err, h.done = v, err, true
		h.mu.Unlock()
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value, h.err
}

// Initialized reports whether init has already run.
func (h *Handle[T]) Initialized() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

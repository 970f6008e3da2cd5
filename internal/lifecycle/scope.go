// Package lifecycle provides a holder for per-surface objects that must outlive a single surface instance.
//
// A surface that is torn down and rebuilt (for example when the user reloads it)
// fetches its view and navigation coordinator from the [Scope] by key and gets the same instances back. Nothing in a
// scope is persisted; a new process starts with an empty scope.
package lifecycle

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Scope maps surface keys to long-lived values.
type Scope struct {
	mu     sync.Mutex
	values map[string]any
	logger *log.Logger
}

// NewScope creates an empty scope. logger may be nil.
func NewScope(logger *log.Logger) *Scope {
	if logger == nil {
		logger = log.Default()
	}
	return &Scope{values: make(map[string]any), logger: logger}
}

// Get returns the value stored under key, calling create to build it on first use.
func (s *Scope) Get(key string, create func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		return v
	}
	v := create()
	s.values[key] = v
	return v
}

// Lookup returns the value for key without creating it.
func (s *Scope) Lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Release removes key, closing its value if it implements [io.Closer].
func (s *Scope) Release(key string) {
	s.mu.Lock()
	v, ok := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if ok {
		s.close(key, v)
	}
}

// Clear releases every key.
func (s *Scope) Clear() {
	s.mu.Lock()
	values := s.values
	s.values = make(map[string]any)
	s.mu.Unlock()

	for key, v := range values {
		s.close(key, v)
	}
}

// Len returns the number of held values.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *Scope) close(key string, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		s.logger.Warn("failed to close scoped value", "key", key, "error", err)
	}
}

// GetTyped is [Scope.Get] with a typed result.
func GetTyped[T any](s *Scope, key string, create func() T) T {
	return s.Get(key, func() any { return create() }).(T)
}

// Package memory provides an in-process KVStore.
package memory

import (
	"context"
	"sync"
)

type entryKey struct {
	scope string
	key   string
}

// KV keeps client settings in a map. It is safe for concurrent use.
type KV struct {
	mu     sync.RWMutex
	values map[entryKey]string
	// FailWith, when set, is returned by every Get and Set.
	FailWith error
}

// NewKV returns an empty KV store.
func NewKV() *KV {
	return &KV{values: make(map[entryKey]string)}
}

// Get returns the value stored for scope and key.
func (s *KV) Get(ctx context.Context, scope, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return "", false, s.FailWith
	}
	value, ok := s.values[entryKey{scope: scope, key: key}]
	return value, ok, nil
}

// Set stores value for scope and key.
func (s *KV) Set(ctx context.Context, scope, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if s.values == nil {
		s.values = make(map[entryKey]string)
	}
	s.values[entryKey{scope: scope, key: key}] = value
	return nil
}

// Len returns the number of stored entries.
func (s *KV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

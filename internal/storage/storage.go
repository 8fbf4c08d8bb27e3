package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyKey is returned for blank keys.
	ErrEmptyKey = errors.New("storage key is required")
	// ErrCorrupt marks a stored value that could not be decoded.
	ErrCorrupt = errors.New("stored value is corrupt")
)

// Change describes one write to durable storage. Value is nil for removals.
type Change struct {
	Key    string  `json:"key"`
	Origin string  `json:"origin"`
	Value  *string `json:"value,omitempty"`
}

// Removed reports whether the change deleted the key.
func (c Change) Removed() bool {
	return c.Value == nil
}

// Listener receives storage changes.
type Listener func(Change)

// Backend is a shared key-value space. Every write is broadcast to all
// listeners together with the writer's origin.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, origin string) error
	Remove(ctx context.Context, key, origin string) error
	Listen(fn Listener) (cancel func())
}

// Store is one origin's handle on a backend. Writes are last-write-wins and
// change notifications are only delivered for writes made by other origins.
type Store struct {
	backend Backend
	origin  string
}

func NewStore(backend Backend, origin string) (*Store, error) {
	if backend == nil {
		return nil, errors.New("storage backend is required")
	}
	if origin == "" {
		return nil, errors.New("storage origin is required")
	}
	return &Store{backend: backend, origin: origin}, nil
}

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	return s.backend.Get(ctx, key)
}

// GetJSON decodes the value at key into dst. It reports false when the key is
// absent.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.backend.Set(ctx, key, value, s.origin)
}

func (s *Store) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.backend.Remove(ctx, key, s.origin)
}

// Watch registers fn for changes written by other origins.
func (s *Store) Watch(fn Listener) (cancel func()) {
	return s.backend.Listen(func(ch Change) {
		if ch.Origin == s.origin {
			return
		}
		fn(ch)
	})
}

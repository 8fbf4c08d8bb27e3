package storage

import (
	"context"
	"sync"
)

// Memory is an in-process backend. Handles created with different origins
// over the same Memory behave like tabs sharing one browser profile.
type Memory struct {
	mu        sync.RWMutex
	values    map[string]string
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn Listener
}

func NewMemory() *Memory {
	return &Memory{
		values: map[string]string{},
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value, origin string) error {
	m.mu.Lock()
	m.values[key] = value
	listeners := m.snapshot()
	m.mu.Unlock()

	v := value
	notify(listeners, Change{Key: key, Origin: origin, Value: &v})
	return nil
}

func (m *Memory) Remove(_ context.Context, key, origin string) error {
	m.mu.Lock()
	delete(m.values, key)
	listeners := m.snapshot()
	m.mu.Unlock()

	notify(listeners, Change{Key: key, Origin: origin})
	return nil
}

func (m *Memory) Listen(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			for i, entry := range m.listeners {
				if entry.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					break
				}
			}
			m.mu.Unlock()
		})
	}
}

func (m *Memory) snapshot() []Listener {
	out := make([]Listener, len(m.listeners))
	for i, entry := range m.listeners {
		out[i] = entry.fn
	}
	return out
}

func notify(listeners []Listener, ch Change) {
	for _, fn := range listeners {
		fn(ch)
	}
}

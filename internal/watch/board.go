package watch

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/freshcut/chickenshop/internal/feed"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/metrics"
)

// FetchFunc loads a full snapshot. It must be idempotent.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Board holds the latest snapshot produced by a watcher's fetch. A failed
// background refresh keeps the previous snapshot.
type Board[T any] struct {
	watcher *Watcher
	fetch   FetchFunc[T]
	logg    *logger.Logger
	metrics *metrics.WatchMetrics

	mu        sync.RWMutex
	snapshot  T
	loaded    bool
	nextID    int
	listeners []boardListener[T]
}

type boardListener[T any] struct {
	id int
	fn func(T)
}

func NewBoard[T any](w *Watcher, fetch FetchFunc[T], logg *logger.Logger, m *metrics.WatchMetrics) (*Board[T], error) {
	if w == nil {
		return nil, errors.New("watcher required")
	}
	if fetch == nil {
		return nil, errors.New("fetch function required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Board[T]{watcher: w, fetch: fetch, logg: logg, metrics: m}, nil
}

// Start subscribes the board's watcher; the first fetch runs right away.
func (b *Board[T]) Start(ctx context.Context) error {
	return b.watcher.Subscribe(ctx, func(ctx context.Context) {
		_ = b.Refresh(ctx)
	})
}

// Refresh fetches and replaces the snapshot. Errors are logged and returned;
// callers on background paths ignore them.
func (b *Board[T]) Refresh(ctx context.Context) error {
	name := b.watcher.Name()
	start := b.watcher.clock.Now()
	snap, err := b.fetch(ctx)
	b.metrics.ObserveDuration(name, b.watcher.clock.Since(start))
	if err != nil {
		b.metrics.IncFailure(name)
		if ctx.Err() == nil {
			b.logg.WarnErr(ctx, "board refresh failed", err)
		}
		return err
	}
	b.metrics.IncSuccess(name)

	b.mu.Lock()
	b.snapshot = snap
	b.loaded = true
	listeners := make([]boardListener[T], len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap)
	}
	return nil
}

// Snapshot returns the latest snapshot and whether one has loaded yet.
func (b *Board[T]) Snapshot() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot, b.loaded
}

// OnChange registers fn for every successful refresh and returns its cancel.
func (b *Board[T]) OnChange(fn func(T)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, boardListener[T]{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

func (b *Board[T]) Close() error {
	return b.watcher.Close()
}

// OpenBoard builds a watcher for policy, wraps it in a board and starts it.
// The caller owns the board and must Close it.
func OpenBoard[T any](ctx context.Context, policy Policy, f feed.Feed, clk clock.Clock, fetch FetchFunc[T], logg *logger.Logger, m *metrics.WatchMetrics) (*Board[T], error) {
	b, err := NewBoard(New(policy, f, clk, logg, m), fetch, logg, m)
	if err != nil {
		return nil, err
	}
	if err := b.Start(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

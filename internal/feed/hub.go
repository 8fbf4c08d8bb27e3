package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/freshcut/chickenshop/pkg/logger"
)

// Feed is what watchers subscribe to.
type Feed interface {
	Subscribe(filters []Filter, fn func(Change)) (*Subscription, error)
}

// Hub delivers each dispatched change to every subscription whose filters
// match it. Callbacks run on the dispatching goroutine and must not block.
type Hub struct {
	logg *logger.Logger

	mu   sync.RWMutex
	subs []*Subscription
}

func NewHub(logg *logger.Logger) *Hub {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Hub{logg: logg}
}

func (h *Hub) Subscribe(filters []Filter, fn func(Change)) (*Subscription, error) {
	if fn == nil {
		return nil, errors.New("change callback required")
	}
	if len(filters) == 0 {
		return nil, errors.New("at least one filter required")
	}
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}
	sub := &Subscription{hub: h, filters: append([]Filter(nil), filters...), fn: fn}
	sub.active.Store(true)

	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()
	return sub, nil
}

// Dispatch delivers c to the matching subscriptions.
func (h *Hub) Dispatch(ctx context.Context, c Change) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if matchesAny(sub.filters, c) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(ctx, c, h.logg)
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return
		}
	}
}

type Subscription struct {
	hub     *Hub
	filters []Filter
	fn      func(Change)
	active  atomic.Bool
	once    sync.Once
}

// Close stops delivery. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.active.Store(false)
		s.hub.remove(s)
	})
}

func (s *Subscription) deliver(ctx context.Context, c Change, logg *logger.Logger) {
	if !s.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logg.Error(logg.WithField(ctx, "table", c.Table), "change subscriber panicked", fmt.Errorf("%v", r))
		}
	}()
	s.fn(c)
}

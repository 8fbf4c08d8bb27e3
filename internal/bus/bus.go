package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	EventBus "github.com/asaskevich/EventBus"

	"github.com/freshcut/chickenshop/pkg/enums"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/metrics"
)

// Event is the payload carried by every signal. OrderID is only set for the
// signals that carry one; UserID scopes the signal to a signed-in customer
// and SessionID narrows it to one open status bar connection.
type Event struct {
	Signal    enums.Signal `json:"signal"`
	UserID    string       `json:"user_id,omitempty"`
	OrderID   string       `json:"order_id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
}

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine and must not publish on the same bus.
type Handler func(ctx context.Context, ev Event)

// Publisher is the narrow surface producers depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus is the process-wide signal bus. It is created once by the runtime and
// closed on shutdown.
type Bus struct {
	events  EventBus.Bus
	logg    *logger.Logger
	metrics *metrics.BusMetrics

	mu     sync.RWMutex
	subs   map[enums.Signal][]*Subscription
	closed bool
}

// New builds a bus with one dispatcher per known signal.
func New(logg *logger.Logger, m *metrics.BusMetrics) (*Bus, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	b := &Bus{
		events:  EventBus.New(),
		logg:    logg,
		metrics: m,
		subs:    map[enums.Signal][]*Subscription{},
	}
	for _, signal := range enums.Signals() {
		if err := b.events.Subscribe(string(signal), b.dispatcher(signal)); err != nil {
			return nil, fmt.Errorf("register dispatcher for %s: %w", signal, err)
		}
	}
	return b, nil
}

// Publish delivers ev to every live subscriber of its signal, in registration order.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if !ev.Signal.IsValid() {
		return fmt.Errorf("unknown signal %q", ev.Signal)
	}
	if ev.Signal.CarriesOrderID() && ev.OrderID == "" {
		return fmt.Errorf("signal %s requires an order id", ev.Signal)
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b.metrics.IncPublished(string(ev.Signal))
	b.events.Publish(string(ev.Signal), ctx, ev)
	return nil
}

// Subscribe registers handler for signal. The returned subscription stops
// delivery once closed, even for a publish already in flight.
func (b *Bus) Subscribe(signal enums.Signal, handler Handler) (*Subscription, error) {
	if !signal.IsValid() {
		return nil, fmt.Errorf("unknown signal %q", signal)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	sub := &Subscription{bus: b, signal: signal, handler: handler}
	sub.mounted.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.mounted.Store(false)
		return sub, nil
	}
	b.subs[signal] = append(b.subs[signal], sub)
	return sub, nil
}

// Close detaches every subscriber. Publishing after Close is a no-op.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for signal, subs := range b.subs {
		for _, sub := range subs {
			sub.mounted.Store(false)
		}
		delete(b.subs, signal)
	}
	return nil
}

func (b *Bus) dispatcher(signal enums.Signal) func(context.Context, Event) {
	return func(ctx context.Context, ev Event) {
		b.mu.RLock()
		subs := make([]*Subscription, len(b.subs[signal]))
		copy(subs, b.subs[signal])
		b.mu.RUnlock()

		for _, sub := range subs {
			sub.deliver(ctx, ev, b.logg)
		}
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.signal]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[sub.signal] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Subscription is a single registration on the bus.
type Subscription struct {
	bus     *Bus
	signal  enums.Signal
	handler Handler
	mounted atomic.Bool
}

// Close unregisters the subscription. Calling it more than once is safe.
func (s *Subscription) Close() {
	if s == nil || !s.mounted.CompareAndSwap(true, false) {
		return
	}
	s.bus.remove(s)
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s != nil && s.mounted.Load()
}

func (s *Subscription) deliver(ctx context.Context, ev Event, logg *logger.Logger) {
	if !s.mounted.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logg.Error(logg.WithField(ctx, "signal", string(ev.Signal)), "bus handler panicked", fmt.Errorf("%v", r))
		}
	}()
	s.handler(ctx, ev)
}

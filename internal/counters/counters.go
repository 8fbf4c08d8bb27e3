// Package counters keeps the homepage delivered-orders counter current.
package counters

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/rpc"
	"github.com/freshcut/chickenshop/pkg/enums"
	"github.com/freshcut/chickenshop/pkg/logger"
)

const cacheTTL = 24 * time.Hour

type MetricReader interface {
	GetMetric(ctx context.Context, name string) (int64, error)
}

type Subscriber interface {
	Subscribe(signal enums.Signal, handler bus.Handler) (*bus.Subscription, error)
}

// Cache shares the last value between replicas. Optional.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CounterKey(name string) string
}

// Delivered re-reads the delivered-orders metric whenever an order_delivered
// signal is published.
type Delivered struct {
	reader MetricReader
	cache  Cache
	logg   *logger.Logger

	mu      sync.RWMutex
	value   int64
	loaded  bool
	sub     *bus.Subscription
	pending sync.WaitGroup

	refreshMu sync.Mutex
}

func NewDelivered(reader MetricReader, cache Cache, logg *logger.Logger) (*Delivered, error) {
	if reader == nil {
		return nil, errors.New("metric reader required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Delivered{reader: reader, cache: cache, logg: logg}, nil
}

// Start warms the counter and subscribes to order_delivered.
func (d *Delivered) Start(ctx context.Context, sub Subscriber) error {
	if err := d.warm(ctx); err != nil {
		d.logg.WarnErr(ctx, "delivered counter warm-up failed", err)
	}
	s, err := sub.Subscribe(enums.SignalOrderDelivered, func(ctx context.Context, ev bus.Event) {
		// handlers run under the bus lock; refresh off that goroutine
		d.pending.Add(1)
		go func() {
			defer d.pending.Done()
			if _, err := d.Refresh(context.WithoutCancel(ctx)); err != nil {
				d.logg.WarnErr(d.logg.WithOrderID(ctx, ev.OrderID), "delivered counter refresh failed", err)
			}
		}()
	})
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.sub = s
	d.mu.Unlock()
	return nil
}

func (d *Delivered) warm(ctx context.Context) error {
	if d.cache != nil {
		raw, err := d.cache.Get(ctx, d.cache.CounterKey(rpc.MetricDeliveredOrders))
		if err == nil {
			if v, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
				d.store(v)
				return nil
			}
		}
	}
	_, err := d.Refresh(ctx)
	return err
}

// Refresh reads the metric from the backend and caches it.
func (d *Delivered) Refresh(ctx context.Context) (int64, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	v, err := d.reader.GetMetric(ctx, rpc.MetricDeliveredOrders)
	if err != nil {
		return 0, err
	}
	d.store(v)
	if d.cache != nil {
		if err := d.cache.Set(ctx, d.cache.CounterKey(rpc.MetricDeliveredOrders), v, cacheTTL); err != nil {
			d.logg.WarnErr(ctx, "delivered counter cache write failed", err)
		}
	}
	return v, nil
}

// Value returns the last known count, reading it once if none is held.
func (d *Delivered) Value(ctx context.Context) (int64, error) {
	d.mu.RLock()
	v, ok := d.value, d.loaded
	d.mu.RUnlock()
	if ok {
		return v, nil
	}
	return d.Refresh(ctx)
}

func (d *Delivered) store(v int64) {
	d.mu.Lock()
	d.value = v
	d.loaded = true
	d.mu.Unlock()
}

// Close unsubscribes and waits for in-flight refreshes.
func (d *Delivered) Close() {
	d.mu.Lock()
	s := d.sub
	d.sub = nil
	d.mu.Unlock()
	if s != nil {
		s.Close()
	}
	d.pending.Wait()
}

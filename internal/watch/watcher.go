// Package watch keeps derived views fresh by re-running one idempotent
// fetch whenever the change feed reports a matching row or a poll tick fires.
package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/freshcut/chickenshop/internal/feed"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/metrics"
)

const (
	triggerInitial = "initial"
	triggerPoll    = "poll"
	triggerFeed    = "feed"
)

var (
	ErrClosed     = errors.New("watcher closed")
	ErrSubscribed = errors.New("watcher already subscribed")
)

// Watcher runs onChange serially: once on subscribe, then on every feed
// event or tick. Feed events arriving while a run is in flight coalesce
// into one follow-up run.
type Watcher struct {
	policy  Policy
	feed    feed.Feed
	clock   clock.Clock
	logg    *logger.Logger
	metrics *metrics.WatchMetrics

	triggers chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	sub     *feed.Subscription
	ticker  *clock.Ticker
	done    chan struct{}
}

// New builds a watcher. f may be nil when no change feed is configured; the
// watcher then relies on polling alone.
func New(policy Policy, f feed.Feed, clk clock.Clock, logg *logger.Logger, m *metrics.WatchMetrics) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Watcher{
		policy:   policy,
		feed:     f,
		clock:    clk,
		logg:     logg,
		metrics:  m,
		triggers: make(chan struct{}, 1),
	}
}

func (w *Watcher) Name() string { return w.policy.Name }

// Subscribe starts the loop. It may be called once per watcher.
func (w *Watcher) Subscribe(ctx context.Context, onChange func(context.Context)) error {
	if onChange == nil {
		return errors.New("change callback required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.started {
		return ErrSubscribed
	}

	ctx = w.logg.WithField(ctx, "watcher", w.policy.Name)
	if w.feed != nil && len(w.policy.Filters) > 0 {
		sub, err := w.feed.Subscribe(w.policy.Filters, func(feed.Change) { w.notify() })
		if err != nil {
			return err
		}
		w.sub = sub
	}
	if w.policy.PollInterval > 0 {
		w.ticker = w.clock.Ticker(w.policy.PollInterval)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	go w.loop(loopCtx, onChange)
	return nil
}

func (w *Watcher) notify() {
	select {
	case w.triggers <- struct{}{}:
	default:
	}
}

func (w *Watcher) loop(ctx context.Context, onChange func(context.Context)) {
	defer close(w.done)

	var tick <-chan time.Time
	if w.ticker != nil {
		tick = w.ticker.C
	}

	w.run(ctx, triggerInitial, onChange)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			w.run(ctx, triggerPoll, onChange)
		case <-w.triggers:
			w.run(ctx, triggerFeed, onChange)
		}
	}
}

func (w *Watcher) run(ctx context.Context, source string, onChange func(context.Context)) {
	if ctx.Err() != nil {
		return
	}
	w.metrics.IncTrigger(w.policy.Name, source)
	onChange(ctx)
}

// Close unsubscribes from the feed, stops the ticker and waits for an
// in-flight run to finish. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.sub != nil {
		w.sub.Close()
	}
	if w.ticker != nil {
		w.ticker.Stop()
	}
	if w.cancel != nil {
		w.cancel()
	}
	done := w.done
	w.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

// Package tracker drives the customer order status bar: it follows the
// user's latest order, detects terminal transitions and runs their side
// effects exactly once per observed edge.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/watch"
	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/metrics"
)

type OrderSource interface {
	LatestForUser(ctx context.Context, userID string) (*models.Order, error)
}

type Subscriber interface {
	Subscribe(signal enums.Signal, handler bus.Handler) (*bus.Subscription, error)
}

// Options configures one controller. SessionID names the connection and is
// generated when empty.
type Options struct {
	UserID    string
	SessionID string
	Route     string
	Orders    OrderSource
	Effects   *Effects
	Bus       Subscriber
	Config    config.TrackerConfig
	Clock     clock.Clock
	Logger    *logger.Logger
	Metrics   *metrics.TrackerMetrics
	Watch     *metrics.WatchMetrics
}

// Controller is one mounted status bar. All state changes go through its
// mutex; side effects run after the lock is released, in observation order.
type Controller struct {
	userID    string
	sessionID string
	orders    OrderSource
	effects   *Effects
	bus       Subscriber
	cfg       config.TrackerConfig
	clock     clock.Clock
	logg      *logger.Logger
	metrics   *metrics.TrackerMetrics
	watcher   *watch.Watcher

	// effectsMu keeps effects of successive observations in order.
	effectsMu sync.Mutex

	mu              sync.Mutex
	closed          bool
	route           string
	order           *models.Order
	prev            enums.OrderStatus
	hasPrev         bool
	forceFull       bool
	deliveredWindow bool
	modal           Modal
	modalDepth      int
	pulse           timerSlot
	window          timerSlot
	modalHide       timerSlot
	subs            []*bus.Subscription
	listeners       []stateListener
	nextListener    int
}

type stateListener struct {
	id int
	fn func(State)
}

// timerSlot holds at most one pending timer. A generation counter makes a
// callback that raced with its own replacement a no-op.
type timerSlot struct {
	timer *clock.Timer
	gen   uint64
}

func (s *timerSlot) stop() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func New(opts Options) (*Controller, error) {
	if opts.UserID != "" {
		if opts.Orders == nil {
			return nil, errors.New("order source required")
		}
		if opts.Effects == nil {
			return nil, errors.New("transition effects required")
		}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	c := &Controller{
		userID:    opts.UserID,
		sessionID: opts.SessionID,
		orders:    opts.Orders,
		effects:   opts.Effects,
		bus:       opts.Bus,
		cfg:       withDefaults(opts.Config),
		clock:     opts.Clock,
		logg:      opts.Logger,
		metrics:   opts.Metrics,
		route:     opts.Route,
	}
	if c.userID != "" {
		c.watcher = watch.New(watch.StatusBarPolicy(c.cfg.PollInterval), nil, c.clock, c.logg, opts.Watch)
	}
	return c, nil
}

func withDefaults(cfg config.TrackerConfig) config.TrackerConfig {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.DeliveredWindow <= 0 {
		cfg.DeliveredWindow = 10 * time.Second
	}
	if cfg.CancelledWindow <= 0 {
		cfg.CancelledWindow = 8 * time.Second
	}
	if cfg.DeliveredPulse <= 0 {
		cfg.DeliveredPulse = 1200 * time.Millisecond
	}
	if cfg.CancelledPulse <= 0 {
		cfg.CancelledPulse = 900 * time.Millisecond
	}
	if cfg.StaffRoutePrefixes == nil {
		cfg.StaffRoutePrefixes = []string{"/admin", "/delivery", "/kitchen", "/daily-sales"}
	}
	return cfg
}

// Start listens for modal signals and begins polling. Without a user the
// controller stays idle and hidden.
func (c *Controller) Start(ctx context.Context) error {
	if c.userID == "" {
		return nil
	}
	ctx = c.logg.WithField(c.logg.WithUserID(ctx, c.userID), "session_id", c.sessionID)
	if c.bus != nil {
		for _, sig := range []enums.Signal{enums.SignalOrderModalOpen, enums.SignalOrderModalClose} {
			sub, err := c.bus.Subscribe(sig, c.onModalSignal)
			if err != nil {
				c.closeSubs()
				return err
			}
			c.mu.Lock()
			c.subs = append(c.subs, sub)
			c.mu.Unlock()
		}
	}
	return c.watcher.Subscribe(ctx, func(ctx context.Context) {
		_ = c.Refresh(ctx)
	})
}

// Refresh fetches the latest order and observes it.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.userID == "" {
		return nil
	}
	order, err := c.orders.LatestForUser(ctx, c.userID)
	if err != nil {
		if ctx.Err() == nil {
			c.logg.Debug(c.logg.WithField(ctx, "error", err.Error()), "status bar refresh failed")
		}
		return err
	}
	c.Observe(ctx, order)
	return nil
}

// Observe feeds one snapshot of the latest order through edge detection.
// The previous status is updated before any side effect starts.
func (c *Controller) Observe(ctx context.Context, order *models.Order) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var effect func(context.Context)
	if order != nil {
		snapshot := *order
		c.order = &snapshot
		cur := snapshot.Status
		if c.hasPrev && c.prev != cur {
			switch cur {
			case enums.OrderStatusDelivered:
				effect = c.deliveredEdgeLocked(snapshot)
			case enums.OrderStatusCancelled:
				effect = c.cancelledEdgeLocked(snapshot)
			}
		}
		c.prev = cur
		c.hasPrev = true
	} else {
		c.order = nil
	}
	state, listeners := c.snapshotLocked()
	c.mu.Unlock()

	notify(listeners, state)
	if effect != nil {
		c.effectsMu.Lock()
		defer c.effectsMu.Unlock()
		// a departing client must not abort a sale insert half way
		effect(context.WithoutCancel(ctx))
	}
}

func (c *Controller) deliveredEdgeLocked(order models.Order) func(context.Context) {
	c.metrics.IncEdge(string(enums.OrderStatusDelivered))
	c.pulseLocked(c.cfg.DeliveredPulse)
	if IsStaffRoute(c.route, c.cfg.StaffRoutePrefixes) {
		c.metrics.IncSuppressedModal()
	} else {
		c.modalHide.stop()
		c.modal = ModalDelivered
	}
	c.deliveredWindow = true
	c.scheduleLocked(&c.window, c.cfg.DeliveredWindow, func() {
		c.deliveredWindow = false
	})
	return func(ctx context.Context) {
		if c.effects != nil {
			c.effects.Delivered(ctx, order)
		}
	}
}

func (c *Controller) cancelledEdgeLocked(order models.Order) func(context.Context) {
	c.metrics.IncEdge(string(enums.OrderStatusCancelled))
	c.modal = ModalCancelled
	c.scheduleLocked(&c.modalHide, c.cfg.CancelledWindow, func() {
		if c.modal == ModalCancelled {
			c.modal = ModalNone
		}
	})
	c.pulseLocked(c.cfg.CancelledPulse)
	return func(ctx context.Context) {
		if c.effects != nil {
			c.effects.Cancelled(ctx, order)
		}
	}
}

func (c *Controller) pulseLocked(d time.Duration) {
	c.forceFull = true
	c.scheduleLocked(&c.pulse, d, func() {
		c.forceFull = false
	})
}

// scheduleLocked replaces whatever timer slot holds with one running apply
// under the lock after d, then notifying listeners.
func (c *Controller) scheduleLocked(slot *timerSlot, d time.Duration, apply func()) {
	slot.stop()
	gen := slot.gen
	slot.timer = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		if c.closed || slot.gen != gen {
			c.mu.Unlock()
			return
		}
		slot.timer = nil
		apply()
		state, listeners := c.snapshotLocked()
		c.mu.Unlock()
		notify(listeners, state)
	})
}

// onModalSignal counts detail modals open in this connection only; signals
// from another session of the same user are ignored.
func (c *Controller) onModalSignal(_ context.Context, ev bus.Event) {
	if ev.SessionID != c.sessionID || (ev.UserID != "" && ev.UserID != c.userID) {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	switch ev.Signal {
	case enums.SignalOrderModalOpen:
		c.modalDepth++
	case enums.SignalOrderModalClose:
		if c.modalDepth > 0 {
			c.modalDepth--
		}
	}
	state, listeners := c.snapshotLocked()
	c.mu.Unlock()
	notify(listeners, state)
}

// SetRoute records the client's current route; it only affects later edges.
func (c *Controller) SetRoute(route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.route = route
}

// DismissModal closes whichever terminal modal is showing.
func (c *Controller) DismissModal() {
	c.mu.Lock()
	if c.closed || c.modal == ModalNone {
		c.mu.Unlock()
		return
	}
	c.modal = ModalNone
	c.modalHide.stop()
	state, listeners := c.snapshotLocked()
	c.mu.Unlock()
	notify(listeners, state)
}

func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, _ := c.snapshotLocked()
	return state
}

// OnChange registers fn for every state change and returns its cancel.
func (c *Controller) OnChange(fn func(State)) func() {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, stateListener{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close cancels every timer, drops the bus subscriptions and stops polling.
// Safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.pulse.stop()
	c.window.stop()
	c.modalHide.stop()
	c.listeners = nil
	c.mu.Unlock()

	c.closeSubs()
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *Controller) closeSubs() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}

func (c *Controller) snapshotLocked() (State, []stateListener) {
	state := State{
		SessionID:       c.sessionID,
		Stages:          enums.CustomerBarStages,
		Modal:           c.modal,
		ForceFull:       c.forceFull,
		DeliveredWindow: c.deliveredWindow,
		HiddenByModal:   c.modalDepth > 0,
		Visible:         Visible(c.userID, c.order, c.deliveredWindow, c.modalDepth),
	}
	if c.order != nil {
		o := *c.order
		state.Order = &o
		state.ActiveIndex = ActiveIndex(o.Status)
		state.ProgressPercent = ProgressPercent(o.Status, c.forceFull)
	}
	listeners := make([]stateListener, len(c.listeners))
	copy(listeners, c.listeners)
	return state, listeners
}

func notify(listeners []stateListener, state State) {
	for _, l := range listeners {
		l.fn(state)
	}
}

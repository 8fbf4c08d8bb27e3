package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/sales"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type NameLookup interface {
	NameFor(ctx context.Context, productID string) (string, error)
}

type SaleRecorder interface {
	Record(ctx context.Context, order models.Order, productName *string) sales.Outcome
}

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// Effects runs the side effects of terminal transitions. Each step is
// isolated: a failure or panic in one is logged and the next still runs.
type Effects struct {
	names NameLookup
	sales SaleRecorder
	cart  CartClearer
	bus   bus.Publisher
	logg  *logger.Logger
}

func NewEffects(names NameLookup, recorder SaleRecorder, cart CartClearer, pub bus.Publisher, logg *logger.Logger) (*Effects, error) {
	if names == nil {
		return nil, errors.New("product name lookup required")
	}
	if recorder == nil {
		return nil, errors.New("sale recorder required")
	}
	if cart == nil {
		return nil, errors.New("cart clearer required")
	}
	if pub == nil {
		return nil, errors.New("bus publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Effects{names: names, sales: recorder, cart: cart, bus: pub, logg: logg}, nil
}

// Delivered resolves the product name, records the sale, clears the
// customer's cart and announces order_delivered.
func (e *Effects) Delivered(ctx context.Context, order models.Order) {
	ctx = e.logg.WithOrderID(ctx, order.ID)

	var name *string
	e.step(ctx, "resolve product name", func() error {
		var err error
		name, err = e.productName(ctx, order)
		return err
	})
	e.step(ctx, "record daily sale", func() error {
		e.sales.Record(ctx, order, name)
		return nil
	})
	e.step(ctx, "clear cart", func() error {
		return e.cart.Clear(ctx, order.UserID)
	})
	e.step(ctx, "publish order_delivered", func() error {
		return e.bus.Publish(ctx, bus.Event{Signal: enums.SignalOrderDelivered, UserID: order.UserID, OrderID: order.ID})
	})
}

// Cancelled announces order_cancelled.
func (e *Effects) Cancelled(ctx context.Context, order models.Order) {
	ctx = e.logg.WithOrderID(ctx, order.ID)
	e.step(ctx, "publish order_cancelled", func() error {
		return e.bus.Publish(ctx, bus.Event{Signal: enums.SignalOrderCancelled, UserID: order.UserID, OrderID: order.ID})
	})
}

// productName prefers the joined name and falls back to one lookup. A failed
// lookup yields nil together with the error for logging.
func (e *Effects) productName(ctx context.Context, order models.Order) (*string, error) {
	if n := strings.TrimSpace(order.DisplayProductName()); n != "" {
		return &n, nil
	}
	if order.ProductID == "" {
		return nil, nil
	}
	n, err := e.names.NameFor(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}
	if n == "" {
		return nil, nil
	}
	return &n, nil
}

func (e *Effects) step(ctx context.Context, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.logg.Error(ctx, name+" panicked", fmt.Errorf("%v", r))
		}
	}()
	if err := fn(); err != nil {
		e.logg.Error(e.logg.WithField(ctx, "step", name), "transition side effect failed", err)
	}
}

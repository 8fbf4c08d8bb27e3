package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/cart"
	"github.com/freshcut/chickenshop/internal/products"
	"github.com/freshcut/chickenshop/pkg/db"
	"github.com/freshcut/chickenshop/pkg/db/dbtest"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev bus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func TestRepositoryLatestForUserJoinsProductName(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	breast := dbtest.MustCreateProduct(t, conn, "Breast", "320", "0.5")
	wings := dbtest.MustCreateProduct(t, conn, "Wings", "240", "0.25")
	dbtest.MustCreateOrder(t, conn, "user-1", breast.ID, enums.OrderStatusDelivered, base)
	latest := dbtest.MustCreateOrder(t, conn, "user-1", wings.ID, enums.OrderStatusPacking, base.Add(time.Hour))
	dbtest.MustCreateOrder(t, conn, "user-2", breast.ID, enums.OrderStatusPlaced, base.Add(2*time.Hour))

	got, err := repo.LatestForUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest.ID, got.ID)
	assert.Equal(t, "Wings", got.DisplayProductName())
	assert.Equal(t, enums.OrderStatusPacking, got.Status)
}

func TestRepositoryLatestForUserNone(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	got, err := repo.LatestForUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryLatestForUserMissingProduct(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.MustCreateOrder(t, conn, "user-1", "gone", enums.OrderStatusPlaced, time.Now().UTC())

	got, err := NewRepository(conn).LatestForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.DisplayProductName())
}

func TestRepositoryListsAndStatusFilters(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	p := dbtest.MustCreateProduct(t, conn, "Thigh", "280", "0.5")

	first := dbtest.MustCreateOrder(t, conn, "user-1", p.ID, enums.OrderStatusPlaced, base)
	second := dbtest.MustCreateOrder(t, conn, "user-1", p.ID, enums.OrderStatusOutForDelivery, base.Add(time.Minute))
	dbtest.MustCreateOrder(t, conn, "user-1", p.ID, enums.OrderStatusDelivered, base.Add(2*time.Minute))
	dbtest.MustCreateOrder(t, conn, "user-2", p.ID, enums.OrderStatusCancelled, base.Add(3*time.Minute))

	mine, err := repo.ListForUser(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, enums.OrderStatusDelivered, mine[0].Status)
	assert.Equal(t, first.ID, mine[2].ID)

	limited, err := repo.ListForUser(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)

	delivery, err := repo.ListByStatus(ctx, DeliveryStatuses)
	require.NoError(t, err)
	require.Len(t, delivery, 1)
	assert.Equal(t, second.ID, delivery[0].ID)

	none, err := repo.ListByStatus(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepositoryFindAndUpdateStatus(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, conn, "Drumstick", "260", "0.3")
	o := dbtest.MustCreateOrder(t, conn, "user-1", p.ID, enums.OrderStatusPlaced, time.Now().UTC())

	_, err := repo.Find(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	now := time.Now().UTC().Add(time.Minute)
	updated, changed, err := repo.UpdateStatus(ctx, o.ID, enums.OrderStatusCutting, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, enums.OrderStatusCutting, updated.Status)
	assert.Equal(t, "Drumstick", updated.DisplayProductName())

	// same status again matches no row but still returns the order
	again, changed, err := repo.UpdateStatus(ctx, o.ID, enums.OrderStatusCutting, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, enums.OrderStatusCutting, again.Status)

	_, _, err = repo.UpdateStatus(ctx, "missing", enums.OrderStatusReady, now)
	assert.True(t, IsNotFound(err))
}

func TestRepositoryUpdateStatusChangesOnceUnderConcurrency(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	p := dbtest.MustCreateProduct(t, conn, "Whole Chicken", "420", "1.2")
	o := dbtest.MustCreateOrder(t, conn, "user-1", p.ID, enums.OrderStatusOutForDelivery, time.Now().UTC())

	var wg sync.WaitGroup
	var mu sync.Mutex
	changes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := repo.UpdateStatus(context.Background(), o.ID, enums.OrderStatusDelivered, time.Now().UTC())
			if assert.NoError(t, err) && changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changes)
}

func newTestService(t *testing.T) (*Service, *recordingPublisher, *clock.Mock, *models.Product) {
	t.Helper()
	conn := dbtest.Open(t)
	pub := &recordingPublisher{}
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC))
	product := dbtest.MustCreateProduct(t, conn, "Boneless", "400", "0.5")

	svc, err := NewService(NewRepository(conn), db.Wrap(conn), products.NewRepository(conn), pub, clk, nil)
	require.NoError(t, err)
	return svc, pub, clk, product
}

func TestServicePlaceCreatesOneOrderPerLine(t *testing.T) {
	svc, pub, _, product := newTestService(t)
	ctx := context.Background()

	var c cart.Cart
	snap := cart.SnapshotOf(*product)
	require.NoError(t, c.Add(snap, 1))
	require.NoError(t, c.Add(snap, 1))
	half := snap
	half.PieceWeightKg = decimal.RequireFromString("0.25")
	require.NoError(t, c.Add(half, 2))
	require.Len(t, c.Items, 2)

	placed, err := svc.Place(ctx, PlaceInput{
		UserID:          "user-1",
		Items:           c.Items,
		DeliveryAddress: "12B, MG Road",
	})
	require.NoError(t, err)
	require.Len(t, placed, 2)

	for _, o := range placed {
		assert.Equal(t, enums.OrderStatusPlaced, o.Status)
		assert.Equal(t, "user-1", o.UserID)
	}
	assert.True(t, placed[0].WeightKg.Equal(decimal.RequireFromString("1.0")))
	assert.True(t, placed[0].TotalAmount.Equal(decimal.NewFromInt(400)))
	assert.True(t, placed[1].TotalAmount.Equal(decimal.NewFromInt(200)))

	require.Len(t, pub.events, 2)
	assert.Equal(t, enums.SignalOrderPlaced, pub.events[0].Signal)
	assert.Equal(t, placed[0].ID, pub.events[0].OrderID)

	latest, err := svc.Latest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, placed[1].ID, latest.ID)
}

func TestServicePlaceValidation(t *testing.T) {
	svc, pub, _, product := newTestService(t)
	ctx := context.Background()
	item := cart.LineItem{Product: cart.SnapshotOf(*product), Quantity: 1, WeightKg: product.PieceWeightKg}

	_, err := svc.Place(ctx, PlaceInput{UserID: "user-1", DeliveryAddress: "x"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeEmptyCart, pkgerrors.As(err).Code())

	_, err = svc.Place(ctx, PlaceInput{UserID: "user-1", Items: []cart.LineItem{item}})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Place(ctx, PlaceInput{Items: []cart.LineItem{item}, DeliveryAddress: "x"})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	assert.Empty(t, pub.events)
}

func TestServiceUpdateStatusAcceptsAnyEnumeratedStatus(t *testing.T) {
	svc, _, _, product := newTestService(t)
	ctx := context.Background()
	item := cart.LineItem{Product: cart.SnapshotOf(*product), Quantity: 1, WeightKg: product.PieceWeightKg}
	placed, err := svc.Place(ctx, PlaceInput{UserID: "user-1", Items: []cart.LineItem{item}, DeliveryAddress: "x"})
	require.NoError(t, err)
	id := placed[0].ID

	// delivered straight from placed, then back again
	got, changed, err := svc.UpdateStatus(ctx, id, "delivered")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, enums.OrderStatusDelivered, got.Status)

	_, changed, err = svc.UpdateStatus(ctx, id, " delivered ")
	require.NoError(t, err)
	assert.False(t, changed)

	got, changed, err = svc.UpdateStatus(ctx, id, "packing")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, enums.OrderStatusPacking, got.Status)

	_, _, err = svc.UpdateStatus(ctx, id, "teleported")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestServiceGetHidesOtherCustomersOrders(t *testing.T) {
	svc, _, _, product := newTestService(t)
	ctx := context.Background()
	item := cart.LineItem{Product: cart.SnapshotOf(*product), Quantity: 1, WeightKg: product.PieceWeightKg}
	placed, err := svc.Place(ctx, PlaceInput{UserID: "user-1", Items: []cart.LineItem{item}, DeliveryAddress: "x"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, placed[0].ID, "user-2", enums.RoleCustomer)
	assert.True(t, IsNotFound(err))

	got, err := svc.Get(ctx, placed[0].ID, "staff-1", enums.RoleKitchen)
	require.NoError(t, err)
	assert.Equal(t, placed[0].ID, got.ID)
}

func TestTotals(t *testing.T) {
	w, a := Totals([]models.Order{
		{WeightKg: decimal.RequireFromString("1.5"), TotalAmount: decimal.RequireFromString("420.50")},
		{WeightKg: decimal.RequireFromString("0.5"), TotalAmount: decimal.RequireFromString("140")},
	})
	assert.True(t, w.Equal(decimal.NewFromInt(2)))
	assert.True(t, a.Equal(decimal.RequireFromString("560.50")))
}

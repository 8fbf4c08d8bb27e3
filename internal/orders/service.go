package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/cart"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// KitchenStatuses are the orders still being prepared.
var KitchenStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusPlaced,
	enums.OrderStatusAccepted,
	enums.OrderStatusConfirmed,
	enums.OrderStatusPreparing,
	enums.OrderStatusCutting,
	enums.OrderStatusPacking,
}

// DeliveryStatuses are the orders waiting for or on their way to the customer.
var DeliveryStatuses = []enums.OrderStatus{
	enums.OrderStatusPacking,
	enums.OrderStatusReady,
	enums.OrderStatusOutForDelivery,
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	Find(ctx context.Context, id string) (*models.Product, error)
}

// PlaceInput is one checkout: every cart line becomes its own order.
type PlaceInput struct {
	UserID          string
	Items           []cart.LineItem
	DeliveryAddress string
}

type Service struct {
	repo     Repository
	tx       txRunner
	products productLoader
	bus      bus.Publisher
	clock    clock.Clock
	logg     *logger.Logger
}

func NewService(repo Repository, tx txRunner, products productLoader, pub bus.Publisher, clk clock.Clock, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("order repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if products == nil {
		return nil, errors.New("product loader required")
	}
	if pub == nil {
		return nil, errors.New("bus publisher required")
	}
	if clk == nil {
		clk = clock.New()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, tx: tx, products: products, bus: pub, clock: clk, logg: logg}, nil
}

// Place creates one placed order per line, priced at the product's current
// price per kg, and announces each with order_placed. The cart is left as is.
func (s *Service) Place(ctx context.Context, in PlaceInput) ([]models.Order, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to place an order")
	}
	if len(in.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	addr := strings.TrimSpace(in.DeliveryAddress)
	if addr == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}

	now := s.clock.Now().UTC()
	placed := make([]models.Order, 0, len(in.Items))
	for i, item := range in.Items {
		if item.Quantity <= 0 || !item.WeightKg.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item has no quantity").
				WithDetails(map[string]any{"product_id": item.Product.ID})
		}
		product, err := s.products.Find(ctx, item.Product.ID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available").
				WithDetails(map[string]any{"product_id": product.ID})
		}
		name := product.Name
		placed = append(placed, models.Order{
			ID:              uuid.NewString(),
			UserID:          in.UserID,
			ProductID:       product.ID,
			ProductName:     &name,
			Quantity:        item.Quantity,
			WeightKg:        item.WeightKg,
			TotalAmount:     item.WeightKg.Mul(product.PricePerKg).Round(2),
			DeliveryAddress: addr,
			Status:          enums.OrderStatusPlaced,
			// distinct timestamps keep "most recent order" deterministic
			CreatedAt: now.Add(orderSpacing(i)),
			UpdatedAt: now,
		})
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range placed {
			if err := repo.Create(ctx, &placed[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	for _, o := range placed {
		if err := s.bus.Publish(ctx, bus.Event{Signal: enums.SignalOrderPlaced, UserID: o.UserID, OrderID: o.ID}); err != nil {
			s.logg.WarnErr(s.logg.WithOrderID(ctx, o.ID), "publish order_placed failed", err)
		}
	}
	return placed, nil
}

// UpdateStatus applies a staff status change. Any enumerated status is
// accepted; changed is false when the order already had it.
func (s *Service) UpdateStatus(ctx context.Context, orderID, rawStatus string) (*models.Order, bool, error) {
	status, err := enums.ParseOrderStatus(strings.TrimSpace(rawStatus))
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
	}
	return s.repo.UpdateStatus(ctx, orderID, status, s.clock.Now().UTC())
}

// Latest returns the user's most recent order or nil.
func (s *Service) Latest(ctx context.Context, userID string) (*models.Order, error) {
	return s.repo.LatestForUser(ctx, userID)
}

// Get returns an order, hiding other customers' orders from non-staff callers.
func (s *Service) Get(ctx context.Context, orderID, viewerID string, viewerRole enums.Role) (*models.Order, error) {
	o, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !viewerRole.IsStaff() && o.UserID != viewerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.repo.ListForUser(ctx, userID, 0)
}

func (s *Service) ListKitchen(ctx context.Context) ([]models.Order, error) {
	return s.repo.ListByStatus(ctx, KitchenStatuses)
}

func (s *Service) ListDelivery(ctx context.Context) ([]models.Order, error) {
	return s.repo.ListByStatus(ctx, DeliveryStatuses)
}

// Totals sums weight and amount over a set of orders.
func Totals(list []models.Order) (weight, amount decimal.Decimal) {
	weight, amount = decimal.Zero, decimal.Zero
	for _, o := range list {
		weight = weight.Add(o.WeightKg)
		amount = amount.Add(o.TotalAmount)
	}
	return weight, amount
}

func orderSpacing(i int) time.Duration {
	return time.Duration(i) * time.Millisecond
}

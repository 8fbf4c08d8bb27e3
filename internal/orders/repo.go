package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

// Repository defines the order reads and writes this service performs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LatestForUser(ctx context.Context, userID string) (*models.Order, error)
	Find(ctx context.Context, id string) (*models.Order, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Order, error)
	ListActive(ctx context.Context) ([]models.Order, error)
	ListByStatus(ctx context.Context, statuses []enums.OrderStatus) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, status enums.OrderStatus, now time.Time) (*models.Order, bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// joined selects orders together with the product name.
func (r *repository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("orders.*, products.name AS product_name").
		Joins("LEFT JOIN products ON products.id = orders.product_id")
}

// LatestForUser returns the user's most recent order, or nil when there is none.
func (r *repository) LatestForUser(ctx context.Context, userID string) (*models.Order, error) {
	var out []models.Order
	if err := r.joined(ctx).
		Where("orders.user_id = ?", userID).
		Order("orders.created_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, pkgerrors.Backend(err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *repository) Find(ctx context.Context, id string) (*models.Order, error) {
	var out []models.Order
	if err := r.joined(ctx).
		Where("orders.id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, pkgerrors.Backend(err)
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &out[0], nil
}

// ListForUser returns the user's orders, newest first.
func (r *repository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	q := r.joined(ctx).
		Where("orders.user_id = ?", userID).
		Order("orders.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, pkgerrors.Backend(err)
	}
	return out, nil
}

// ListActive returns every non-terminal order.
func (r *repository) ListActive(ctx context.Context) ([]models.Order, error) {
	return r.ListByStatus(ctx, enums.ActiveOrderStatuses())
}

// ListByStatus returns matching orders, oldest first, which is queue order
// for the kitchen and delivery boards.
func (r *repository) ListByStatus(ctx context.Context, statuses []enums.OrderStatus) ([]models.Order, error) {
	if len(statuses) == 0 {
		return []models.Order{}, nil
	}
	var out []models.Order
	if err := r.joined(ctx).
		Where("orders.status IN ?", statuses).
		Order("orders.created_at ASC").
		Find(&out).Error; err != nil {
		return nil, pkgerrors.Backend(err)
	}
	return out, nil
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return pkgerrors.Backend(err)
	}
	return nil
}

// UpdateStatus applies any enumerated status; transition legality is the
// backend's concern. The write only matches a row whose status differs, so
// changed is true for exactly one of several concurrent identical updates.
func (r *repository) UpdateStatus(ctx context.Context, id string, status enums.OrderStatus, now time.Time) (*models.Order, bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status <> ?", id, status).
		Updates(map[string]any{"status": status, "updated_at": now})
	if res.Error != nil {
		return nil, false, pkgerrors.Backend(res.Error)
	}
	order, err := r.Find(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return order, res.RowsAffected > 0, nil
}

// IsNotFound reports whether err is the repository's not-found error.
func IsNotFound(err error) bool {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code() == pkgerrors.CodeNotFound
	}
	return errors.Is(err, gorm.ErrRecordNotFound)
}

package sales

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/freshcut/chickenshop/pkg/db/models"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

type Repository interface {
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	Create(ctx context.Context, sale *models.DailySale) error
	ListForDate(ctx context.Context, day time.Time) ([]models.DailySale, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DailySale{}).
		Where("order_id = ?", orderID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, pkgerrors.Backend(err)
	}
	return count > 0, nil
}

// Create inserts the sale. Unique violations are returned unwrapped so the
// caller can recognise them.
func (r *repository) Create(ctx context.Context, sale *models.DailySale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// ListForDate returns the sales recorded on day, oldest first. day is the
// calendar date as produced by SaleDay.
func (r *repository) ListForDate(ctx context.Context, day time.Time) ([]models.DailySale, error) {
	start := day.UTC()
	var out []models.DailySale
	if err := r.db.WithContext(ctx).
		Where("sale_date >= ? AND sale_date < ?", start, start.Add(24*time.Hour)).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, pkgerrors.Backend(err)
	}
	return out, nil
}

// SaleDay maps an instant to its calendar date in loc, stored as midnight UTC.
func SaleDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

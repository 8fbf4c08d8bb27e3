package products

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/freshcut/chickenshop/pkg/db/models"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

// Repository reads the catalog.
type Repository interface {
	List(ctx context.Context) ([]models.Product, error)
	Find(ctx context.Context, id string) (*models.Product, error)
	FindName(ctx context.Context, id string) (string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// List returns active products ordered by name.
func (r *repository) List(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, pkgerrors.Backend(err)
	}
	return out, nil
}

func (r *repository) Find(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Backend(err)
	}
	return &p, nil
}

// FindName returns only the product's display name.
func (r *repository) FindName(ctx context.Context, id string) (string, error) {
	var names []string
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Limit(1).
		Pluck("name", &names).Error; err != nil {
		return "", pkgerrors.Backend(err)
	}
	if len(names) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return names[0], nil
}

package profiles

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/freshcut/chickenshop/pkg/db/models"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

type Repository interface {
	Find(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateAddress(ctx context.Context, userID, encoded string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	if err != nil {
		return nil, pkgerrors.Backend(err)
	}
	return &p, nil
}

func (r *repository) UpdateAddress(ctx context.Context, userID, encoded string) error {
	res := r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ?", userID).
		Updates(map[string]any{"address": encoded, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return pkgerrors.Backend(res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return nil
}

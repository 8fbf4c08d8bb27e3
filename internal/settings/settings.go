// Package settings serves app_settings rows, fetched lazily and kept in
// storage until explicitly cleared.
package settings

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/freshcut/chickenshop/internal/storage"
	"github.com/freshcut/chickenshop/pkg/db/models"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type Repository interface {
	Find(ctx context.Context, key string) (*models.AppSetting, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Find returns the setting or nil when no row exists.
func (r *repository) Find(ctx context.Context, key string) (*models.AppSetting, error) {
	var rows []models.AppSetting
	if err := r.db.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Backend(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type Service struct {
	repo  Repository
	store *storage.Store
	logg  *logger.Logger
}

func NewService(repo Repository, store *storage.Store, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("settings repository required")
	}
	if store == nil {
		return nil, errors.New("storage required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, store: store, logg: logg}, nil
}

// Get returns the cached value, fetching it from the backend on a miss.
// Missing settings are not cached.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "setting key is required")
	}
	ctx = s.logg.WithField(ctx, "setting", key)

	cached, ok, err := s.store.Get(ctx, storage.SettingKey(key))
	if err != nil {
		s.logg.WarnErr(ctx, "setting cache read failed", err)
	} else if ok {
		return cached, nil
	}

	row, err := s.repo.Find(ctx, key)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "setting not found")
	}
	if err := s.store.Set(ctx, storage.SettingKey(key), row.Value); err != nil {
		s.logg.WarnErr(ctx, "setting cache write failed", err)
	}
	return row.Value, nil
}

// Clear drops the cached value so the next Get refetches.
func (s *Service) Clear(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting key is required")
	}
	return s.store.Remove(ctx, storage.SettingKey(key))
}

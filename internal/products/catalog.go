package products

import (
	"context"
	"errors"

	"github.com/freshcut/chickenshop/internal/storage"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// Catalog serves the product list and keeps a copy in durable storage as a
// fast first-paint hint. The hint is never treated as authoritative.
type Catalog struct {
	repo    Repository
	storage *storage.Store
	logg    *logger.Logger
}

func NewCatalog(repo Repository, st *storage.Store, logg *logger.Logger) (*Catalog, error) {
	if repo == nil {
		return nil, errors.New("product repository required")
	}
	if st == nil {
		return nil, errors.New("storage required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Catalog{repo: repo, storage: st, logg: logg}, nil
}

// List fetches the catalog and refreshes the cache hint.
func (c *Catalog) List(ctx context.Context) ([]models.Product, error) {
	items, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Product{}
	}
	if err := c.storage.SetJSON(ctx, storage.ProductsCacheKey, items); err != nil {
		c.logg.WarnErr(ctx, "refresh products cache failed", err)
	}
	return items, nil
}

// Cached returns the last cached catalog. ok is false when nothing usable is
// cached.
func (c *Catalog) Cached(ctx context.Context) (items []models.Product, ok bool, err error) {
	ok, err = c.storage.GetJSON(ctx, storage.ProductsCacheKey, &items)
	if errors.Is(err, storage.ErrCorrupt) {
		c.logg.WarnErr(ctx, "ignoring corrupt products cache", err)
		return nil, false, nil
	}
	return items, ok, err
}

func (c *Catalog) Find(ctx context.Context, id string) (*models.Product, error) {
	return c.repo.Find(ctx, id)
}

// NameFor resolves a product's display name.
func (c *Catalog) NameFor(ctx context.Context, id string) (string, error) {
	return c.repo.FindName(ctx, id)
}

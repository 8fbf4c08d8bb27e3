package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type ProductCatalog interface {
	List(ctx context.Context) ([]models.Product, error)
	Cached(ctx context.Context) ([]models.Product, bool, error)
}

type productsResponse struct {
	Items  []models.Product `json:"items"`
	Cached bool             `json:"cached"`
}

// ProductsList serves the catalog. With ?cached=true the last cached catalog
// is returned when one exists, so a client can paint before the fresh read.
func ProductsList(catalog ProductCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantCached, _ := strconv.ParseBool(r.URL.Query().Get("cached")); wantCached {
			items, ok, err := catalog.Cached(r.Context())
			if err != nil {
				logg.WarnErr(r.Context(), "read products cache failed", err)
			}
			if ok {
				responses.WriteSuccess(w, productsResponse{Items: items, Cached: true})
				return
			}
		}

		items, err := catalog.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, productsResponse{Items: items})
	}
}

package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/api/validators"
	"github.com/freshcut/chickenshop/internal/cart"
	"github.com/freshcut/chickenshop/pkg/db/models"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type CartStore interface {
	Load(ctx context.Context, userID string) (*cart.Cart, error)
	Add(ctx context.Context, userID string, p cart.ProductSnapshot, quantity int) (*cart.Cart, error)
	SetQuantity(ctx context.Context, userID, productID string, pieceWeight decimal.Decimal, quantity int) (*cart.Cart, error)
	Remove(ctx context.Context, userID, productID string, pieceWeight decimal.Decimal) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type ProductFinder interface {
	Find(ctx context.Context, id string) (*models.Product, error)
}

type cartResponse struct {
	Items         []cart.LineItem `json:"items"`
	Count         int             `json:"count"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	if c == nil {
		c = &cart.Cart{}
	}
	items := c.Items
	if items == nil {
		items = []cart.LineItem{}
	}
	return cartResponse{
		Items:         items,
		Count:         c.Count(),
		TotalWeightKg: c.TotalWeightKg(),
		TotalAmount:   c.TotalAmount(),
	}
}

type addCartItemRequest struct {
	ProductID     string           `json:"product_id" validate:"required"`
	Quantity      int              `json:"quantity" validate:"required,min=1,max=99"`
	PieceWeightKg *decimal.Decimal `json:"piece_weight_kg"`
}

type updateCartItemRequest struct {
	PieceWeightKg decimal.Decimal `json:"piece_weight_kg"`
	Quantity      int             `json:"quantity" validate:"min=0,max=99"`
}

func CartFetch(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.Load(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

// CartAddItem snapshots the product from the catalog and merges it into the cart.
// A piece weight in the request selects a cut size other than the catalog default.
func CartAddItem(store CartStore, products ProductFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body addCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.Find(r.Context(), body.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !product.IsActive {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "product is not available"))
			return
		}

		snap := cart.SnapshotOf(*product)
		if body.PieceWeightKg != nil {
			if !body.PieceWeightKg.IsPositive() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "piece weight must be positive"))
				return
			}
			snap.PieceWeightKg = *body.PieceWeightKg
		}

		c, err := store.Add(r.Context(), middleware.UserIDFromContext(r.Context()), snap, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(c))
	}
}

// CartUpdateItem sets a line's quantity; zero removes the line.
func CartUpdateItem(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := store.SetQuantity(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "productID"), body.PieceWeightKg, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

// CartRemoveItem drops the line identified by product id and ?piece_weight_kg=.
func CartRemoveItem(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pieceWeight, err := validators.ParsePositiveDecimal("piece_weight_kg", r.URL.Query().Get("piece_weight_kg"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := store.Remove(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "productID"), pieceWeight)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

func CartClear(store CartStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Clear(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(nil))
	}
}

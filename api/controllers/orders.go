package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/api/validators"
	"github.com/freshcut/chickenshop/internal/address"
	"github.com/freshcut/chickenshop/internal/cart"
	"github.com/freshcut/chickenshop/internal/orders"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type OrderService interface {
	Place(ctx context.Context, in orders.PlaceInput) ([]models.Order, error)
	Get(ctx context.Context, orderID, viewerID string, viewerRole enums.Role) (*models.Order, error)
	ListForUser(ctx context.Context, userID string) ([]models.Order, error)
}

type CartLoader interface {
	Load(ctx context.Context, userID string) (*cart.Cart, error)
}

type AddressReader interface {
	Address(ctx context.Context, userID string) (address.Draft, address.Variant, error)
}

const maxOrdersPage = 200

type placeOrderRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"max=600"`
}

type orderListResponse struct {
	Orders        []models.Order  `json:"orders"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

func newOrderListResponse(list []models.Order) orderListResponse {
	if list == nil {
		list = []models.Order{}
	}
	weight, amount := orders.Totals(list)
	return orderListResponse{Orders: list, TotalWeightKg: weight, TotalAmount: amount}
}

// OrdersPlace checks out the caller's cart, one order per line. Without an
// explicit address the saved profile address is used.
func OrdersPlace(svc OrderService, carts CartLoader, profiles AddressReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body placeOrderRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		c, err := carts.Load(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryAddress := validators.SanitizeString(body.DeliveryAddress, 600)
		if deliveryAddress == "" && profiles != nil {
			draft, _, err := profiles.Address(r.Context(), userID)
			if err != nil {
				logg.WarnErr(r.Context(), "read saved address failed", err)
			} else {
				deliveryAddress = draft.Format()
			}
		}

		placed, err := svc.Place(r.Context(), orders.PlaceInput{
			UserID:          userID,
			Items:           c.Items,
			DeliveryAddress: deliveryAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderListResponse(placed))
	}
}

// OrdersList returns the caller's orders, newest first. Totals always cover
// the full history; ?limit= only trims the returned rows.
func OrdersList(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.QueryInt(r, "limit", 0, 0, maxOrdersPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForUser(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := newOrderListResponse(list)
		if limit > 0 && len(resp.Orders) > limit {
			resp.Orders = resp.Orders[:limit]
		}
		responses.WriteSuccess(w, resp)
	}
}

func OrdersGet(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		order, err := svc.Get(ctx, chi.URLParam(r, "orderID"), middleware.UserIDFromContext(ctx), middleware.RoleFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

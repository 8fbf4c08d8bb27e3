package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/api/validators"
	"github.com/freshcut/chickenshop/internal/rpc"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

const (
	kitchenEvent  = "kitchen"
	deliveryEvent = "delivery"
	salesEvent    = "sales"
)

type StockProcedures interface {
	ButcherChicken(ctx context.Context, productID string, weightKg decimal.Decimal) error
	RecordWaste(ctx context.Context, productID string, weightKg decimal.Decimal, reason string) error
}

type StatusUpdater interface {
	Get(ctx context.Context, orderID, viewerID string, viewerRole enums.Role) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID, rawStatus string) (*models.Order, bool, error)
}

type MetricIncrementer interface {
	IncrementMetric(ctx context.Context, name string, delta int64) (int64, error)
}

type SalesLister interface {
	ListForDate(ctx context.Context, day time.Time) ([]models.DailySale, error)
}

type stockRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	WeightKg  decimal.Decimal `json:"weight_kg"`
}

type wasteRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	WeightKg  decimal.Decimal `json:"weight_kg"`
	Reason    string          `json:"reason" validate:"max=300"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type salesResponse struct {
	Date          string             `json:"date"`
	Sales         []models.DailySale `json:"sales"`
	TotalWeightKg decimal.Decimal    `json:"total_weight_kg"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
}

// RenderOrders shapes an order board snapshot for the staff dashboards.
func RenderOrders(list []models.Order) any {
	return newOrderListResponse(list)
}

// RenderSales shapes a sales board snapshot, labelled with the sale date.
func RenderSales(day func() time.Time) func([]models.DailySale) any {
	return func(list []models.DailySale) any {
		return newSalesResponse(day(), list)
	}
}

func newSalesResponse(day time.Time, list []models.DailySale) salesResponse {
	if list == nil {
		list = []models.DailySale{}
	}
	weight, amount := decimal.Zero, decimal.Zero
	for _, s := range list {
		weight = weight.Add(s.WeightKg)
		amount = amount.Add(s.TotalAmount)
	}
	return salesResponse{Date: day.Format(time.DateOnly), Sales: list, TotalWeightKg: weight, TotalAmount: amount}
}

func KitchenOrders(board BoardSource[[]models.Order], logg *logger.Logger) http.HandlerFunc {
	return BoardGet(board, RenderOrders, logg)
}

func KitchenOrdersStream(board BoardSource[[]models.Order], heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	return BoardStream(board, kitchenEvent, RenderOrders, heartbeat, logg)
}

func DeliveryOrders(board BoardSource[[]models.Order], logg *logger.Logger) http.HandlerFunc {
	return BoardGet(board, RenderOrders, logg)
}

func DeliveryOrdersStream(board BoardSource[[]models.Order], heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	return BoardStream(board, deliveryEvent, RenderOrders, heartbeat, logg)
}

// KitchenButcher converts live birds into cut stock through the backend.
func KitchenButcher(procs StockProcedures, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body stockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := procs.ButcherChicken(r.Context(), body.ProductID, body.WeightKg); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": body.ProductID, "weight_kg": body.WeightKg})
	}
}

func KitchenWaste(procs StockProcedures, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body wasteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason := validators.SanitizeString(body.Reason, 300)
		if err := procs.RecordWaste(r.Context(), body.ProductID, body.WeightKg, reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": body.ProductID, "weight_kg": body.WeightKg, "reason": reason})
	}
}

// StaffUpdateStatus applies a status chosen on a staff board. The update that
// actually moves an order into delivered bumps the delivered-orders metric; a
// failure there is logged and does not fail the update.
func StaffUpdateStatus(svc StatusUpdater, metrics MetricIncrementer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body statusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		orderID := chi.URLParam(r, "orderID")
		ctx = logg.WithOrderID(ctx, orderID)

		prev, err := svc.Get(ctx, orderID, middleware.UserIDFromContext(ctx), middleware.RoleFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		updated, changed, err := svc.UpdateStatus(ctx, orderID, strings.ToLower(body.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if metrics != nil && changed && updated.Status == enums.OrderStatusDelivered {
			if _, err := metrics.IncrementMetric(ctx, rpc.MetricDeliveredOrders, 1); err != nil {
				logg.WarnErr(ctx, "increment delivered metric failed", err)
			}
		}

		logg.Info(logg.WithFields(ctx, map[string]any{"from": prev.Status, "to": updated.Status}), "order status updated")
		responses.WriteSuccess(w, updated)
	}
}

func AdminSales(board BoardSource[[]models.DailySale], history SalesLister, today func() time.Time, logg *logger.Logger) http.HandlerFunc {
	live := BoardGet(board, RenderSales(today), logg)
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("date"))
		if raw == "" {
			live(w, r)
			return
		}
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD").
				WithDetails(map[string]any{"field": "date"}))
			return
		}
		list, err := history.ListForDate(r.Context(), day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSalesResponse(day, list))
	}
}

func AdminSalesStream(board BoardSource[[]models.DailySale], today func() time.Time, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	return BoardStream(board, salesEvent, RenderSales(today), heartbeat, logg)
}

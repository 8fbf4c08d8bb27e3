package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/logger"
)

const trackingEvent = "orders"

// TrackingOpener starts a live view of one customer's orders. close releases it.
type TrackingOpener func(ctx context.Context, userID string) (board BoardSource[[]models.Order], close func(), err error)

// OrdersStream follows the caller's own orders, refreshed on every change to
// their rows and on the tracking poll.
func OrdersStream(open TrackingOpener, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		board, closeBoard, err := open(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer closeBoard()
		streamSnapshots(w, r, board, trackingEvent, RenderOrders, heartbeat, logg)
	}
}

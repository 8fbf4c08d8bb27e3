package controllers

import (
	"context"
	"net/http"

	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type DeliveredCounter interface {
	Value(ctx context.Context) (int64, error)
}

func StatsDelivered(counter DeliveredCounter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := counter.Value(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"delivered_orders": n})
	}
}

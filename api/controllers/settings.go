package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type SettingsService interface {
	Get(ctx context.Context, key string) (string, error)
	Clear(ctx context.Context, key string) error
}

func SettingsGet(svc SettingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		value, err := svc.Get(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"key": key, "value": value})
	}
}

// SettingsClear drops the cached value so the next read goes to the database.
func SettingsClear(svc SettingsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Clear(r.Context(), chi.URLParam(r, "key")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

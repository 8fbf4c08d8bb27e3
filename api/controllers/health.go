package controllers

import (
	"context"
	"net/http"
	"sort"

	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/pkg/config"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Chickenshop-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails with the names that did not answer.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Chickenshop-Env", cfg.App.Env)

		var failed []string
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				logg.WarnErr(logg.WithField(r.Context(), "dependency", name), "readiness ping failed", err)
				failed = append(failed, name)
			}
		}
		if len(failed) > 0 {
			sort.Strings(failed)
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"failed": failed}))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

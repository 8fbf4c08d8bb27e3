package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/api/validators"
	"github.com/freshcut/chickenshop/internal/bus"
	"github.com/freshcut/chickenshop/internal/tracker"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

const orderBarEvent = "orderbar"

type OrderBarSessions interface {
	Open(ctx context.Context, userID, route string) (*tracker.Controller, func(), error)
	Snapshot(ctx context.Context, userID string) (tracker.State, error)
	Dismiss(userID, sessionID string) bool
	SetRoute(userID, sessionID, route string) bool
}

type sessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
}

type routeRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
	Route     string `json:"route" validate:"required,max=200"`
}

var errSessionGone = pkgerrors.New(pkgerrors.CodeNotFound, "order bar session not found")

func OrderBarGet(sessions OrderBarSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := sessions.Snapshot(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// OrderBarStream mounts a status bar for the connection and streams its
// state until the client disconnects. ?route= names the page it is shown on.
// Every frame carries the session id the other order bar calls address.
func OrderBarStream(sessions OrderBarSessions, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		route := validators.SanitizeString(r.URL.Query().Get("route"), 200)

		ctrl, release, err := sessions.Open(ctx, middleware.UserIDFromContext(ctx), route)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer release()

		updates := newLatest()
		cancel := ctrl.OnChange(func(s tracker.State) { updates.put(s) })
		defer cancel()
		updates.put(ctrl.State())

		pump(w, r, orderBarEvent, updates, heartbeat, logg)
	}
}

func OrderBarDismiss(sessions OrderBarSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body sessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !sessions.Dismiss(middleware.UserIDFromContext(r.Context()), body.SessionID) {
			responses.WriteError(r.Context(), logg, w, errSessionGone)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// OrderBarRoute tells one open status bar of the caller which page it is on.
func OrderBarRoute(sessions OrderBarSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body routeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		route := validators.SanitizeString(body.Route, 200)
		if !sessions.SetRoute(middleware.UserIDFromContext(r.Context()), body.SessionID, route) {
			responses.WriteError(r.Context(), logg, w, errSessionGone)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// OrderBarModal publishes order_modal_open or order_modal_close for one
// session of the caller, hiding or restoring that status bar while another
// detail modal is up.
func OrderBarModal(pub bus.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var signal enums.Signal
		switch chi.URLParam(r, "action") {
		case "open":
			signal = enums.SignalOrderModalOpen
		case "close":
			signal = enums.SignalOrderModalClose
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "action must be open or close"))
			return
		}
		var body sessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ev := bus.Event{Signal: signal, UserID: middleware.UserIDFromContext(r.Context()), SessionID: body.SessionID}
		if err := pub.Publish(r.Context(), ev); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

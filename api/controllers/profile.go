package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/freshcut/chickenshop/api/middleware"
	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/api/validators"
	"github.com/freshcut/chickenshop/internal/address"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type AddressDrafts interface {
	Update(ctx context.Context, userID string, d address.Draft) error
	Draft(ctx context.Context, userID string) (address.Draft, bool, error)
	Pending(userID string) bool
	Flush(ctx context.Context, userID string) error
}

type addressResponse struct {
	Address   address.Draft  `json:"address"`
	Variant   string         `json:"variant"`
	Formatted string         `json:"formatted"`
	Draft     *address.Draft `json:"draft,omitempty"`
	Pending   bool           `json:"pending"`
}

// ProfileAddressGet returns the saved address plus any unsaved draft.
func ProfileAddressGet(profiles AddressReader, drafts AddressDrafts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		saved, variant, err := profiles.Address(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := addressResponse{
			Address:   saved,
			Variant:   variant.String(),
			Formatted: saved.Format(),
			Pending:   drafts.Pending(userID),
		}
		if d, ok, err := drafts.Draft(r.Context(), userID); err != nil {
			logg.WarnErr(r.Context(), "read address draft failed", err)
		} else if ok {
			resp.Draft = &d
		}
		responses.WriteSuccess(w, resp)
	}
}

// ProfileAddressPut records a draft and schedules the debounced save.
// With ?flush=true the draft is saved before responding.
func ProfileAddressPut(drafts AddressDrafts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body address.Draft
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if err := drafts.Update(r.Context(), userID, body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusAccepted
		if flush, _ := strconv.ParseBool(r.URL.Query().Get("flush")); flush {
			if err := drafts.Flush(r.Context(), userID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"draft":   body,
			"pending": drafts.Pending(userID),
		})
	}
}

// Package responses writes the JSON envelopes and SSE frames handlers emit.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as an error envelope. Untyped errors become
// CodeInternal and never reach the client verbatim.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{Code: string(typed.Code()), Message: clientMessage(typed, meta)}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		logFailure(ctx, logg, err, meta.HTTPStatus)
	}
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr})
}

// clientMessage shows the caller's own message for 4xx codes; server side
// failures only do so when their code allows details.
func clientMessage(typed *pkgerrors.Error, meta pkgerrors.Metadata) string {
	if meta.HTTPStatus < http.StatusInternalServerError && typed.Message() != "" {
		return typed.Message()
	}
	return typed.PublicMessage()
}

func logFailure(ctx context.Context, logg *logger.Logger, err error, status int) {
	d := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
		"http_status": status,
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_message"] = d.PGMessage
		fields["pg_constraint"] = d.PGConstraint
	}
	if d.SQLiteCode != "" {
		fields["sqlite_code"] = d.SQLiteCode
	}
	ctx = logg.WithFields(ctx, fields)

	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.WarnErr(ctx, "request.rejected", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

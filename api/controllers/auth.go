package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/freshcut/chickenshop/api/responses"
	"github.com/freshcut/chickenshop/api/validators"
	"github.com/freshcut/chickenshop/internal/rpc"
	pkgAuth "github.com/freshcut/chickenshop/pkg/auth"
	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
	"github.com/freshcut/chickenshop/pkg/logger"
)

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*rpc.Identity, error)
}

type Registrar interface {
	CreateUser(ctx context.Context, in rpc.NewUser) (string, error)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	DisplayName string `json:"display_name" validate:"max=120"`
	Phone       string `json:"phone" validate:"max=32"`
}

type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	User        rpc.Identity `json:"user"`
}

// AuthLogin checks credentials against the backend and issues an access token.
func AuthLogin(svc Authenticator, jwtCfg config.JWTConfig, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity, err := svc.Authenticate(r.Context(), validators.SanitizeString(body.Username, 64), body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, r, jwtCfg, now(), *identity, http.StatusOK, logg)
	}
}

// AuthRegister creates a customer account and signs it in.
func AuthRegister(svc Registrar, jwtCfg config.JWTConfig, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in := rpc.NewUser{
			Username:    validators.SanitizeString(body.Username, 64),
			Password:    body.Password,
			DisplayName: validators.SanitizeString(body.DisplayName, 120),
			Phone:       validators.SanitizeString(body.Phone, 32),
		}
		userID, err := svc.CreateUser(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := rpc.Identity{
			UserID:      userID,
			Username:    in.Username,
			DisplayName: optional(in.DisplayName),
			Role:        enums.RoleCustomer,
		}
		writeSession(w, r, jwtCfg, now(), identity, http.StatusCreated, logg)
	}
}

func writeSession(w http.ResponseWriter, r *http.Request, jwtCfg config.JWTConfig, now time.Time, identity rpc.Identity, status int, logg *logger.Logger) {
	token, err := pkgAuth.MintAccessToken(jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
	})
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue access token"))
		return
	}
	responses.WriteSuccessStatus(w, status, sessionResponse{AccessToken: token, User: identity})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

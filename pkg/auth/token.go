package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/freshcut/chickenshop/pkg/config"
)

var (
	ErrMissingSecret = errors.New("jwt secret is required")
	ErrInvalidRole   = errors.New("token carries an unknown role")
)

const clockSkew = 30 * time.Second

func signingKey(cfg config.JWTConfig) ([]byte, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	return []byte(cfg.Secret), nil
}

// MintAccessToken signs an HS256 token for payload, valid for the configured
// number of minutes from now.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return "", err
	}
	switch {
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case strings.TrimSpace(payload.UserID) == "":
		return "", errors.New("user id is required")
	case !payload.Role.IsValid():
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID:   payload.UserID,
		Username: payload.Username,
		Role:     payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then checks the
// role claim is one this service knows.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return nil, err
	}

	claims := &AccessTokenClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}
	return claims, nil
}

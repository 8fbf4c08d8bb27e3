package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/freshcut/chickenshop/pkg/enums"
)

// AccessTokenPayload is what a caller supplies when minting. JTI is generated
// when blank.
type AccessTokenPayload struct {
	UserID   string
	Username string
	Role     enums.Role
	JTI      string
}

// AccessTokenClaims is the token body. Subject mirrors UserID.
type AccessTokenClaims struct {
	UserID   string     `json:"user_id"`
	Username string     `json:"username,omitempty"`
	Role     enums.Role `json:"role"`
	jwt.RegisteredClaims
}

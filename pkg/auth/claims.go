package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject string
	Role    enums.Role
	JTI     string
}

// AccessTokenClaims represents the typed JWT presented by operators and producers.
type AccessTokenClaims struct {
	Role enums.Role `json:"role"`
	jwt.RegisteredClaims
}

package auth

import (
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
// Subject is the customer id, vendor id or admin username depending on Role.
type AccessTokenPayload struct {
	Subject string
	Role    enums.Role
	Name    string
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	Role enums.Role `json:"role"`
	Name string     `json:"name,omitempty"`
	jwt.RegisteredClaims
}

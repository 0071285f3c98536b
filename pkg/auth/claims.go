package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject string
	Email   string
	Role    enums.PrincipalRole
	JTI     string
}

// AccessTokenClaims represents the identity provider's bearer token. The
// principal is the registered `sub` claim.
type AccessTokenClaims struct {
	Email string              `json:"email,omitempty"`
	Role  enums.PrincipalRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the principal may act on behalf of other organizers.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.PrincipalRoleAdmin
}

package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypeSignaling is a short-lived ticket accepted only on the websocket upgrade.
	TokenTypeSignaling TokenType = "signaling"
)

// Claims are the only supported JWT claims shape for this service.
// UserID is the acting user for every call operation; call-level authority
// (initiator, moderator) is decided by the call roster, never by the token.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
}

// carriesRole reports whether tokens of this type must name a platform role.
func (t TokenType) carriesRole() bool {
	return t == TokenTypeAccess || t == TokenTypeSignaling
}

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// ticketQueryParam carries the signaling ticket on websocket upgrades, where browsers cannot set headers.
	ticketQueryParam = "ticket"
)

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get(authorizationHeader))
	if !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
}

// RequireAccessToken verifies a bearer access token and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return requireToken(m, TokenTypeAccess, BearerToken)
}

// RequireSignalingTicket guards the websocket upgrade with a ?ticket= signaling token.
func RequireSignalingTicket(m *Manager) gin.HandlerFunc {
	return requireToken(m, TokenTypeSignaling, func(r *http.Request) string {
		return strings.TrimSpace(r.URL.Query().Get(ticketQueryParam))
	})
}

func requireToken(m *Manager, expected TokenType, extract func(*http.Request) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := extract(c.Request)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := m.Verify(tok, expected, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

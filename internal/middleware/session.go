package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bookrag/internal/pkg/response"
	"github.com/xxxsen/bookrag/internal/pkg/session"
)

const (
	ContextUserIDKey    = "user_id"
	ContextSessionIDKey = "session_id"

	sessionCookieName = "session_token"
)

// SessionAuth resolves the session cookie minted by the external
// identity service. When required is false the request proceeds
// anonymously on a missing or invalid cookie; otherwise it is rejected.
func SessionAuth(secret []byte, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookieName)
		if err != nil || token == "" {
			deny(c, required, "missing session")
			return
		}
		claims, err := session.ParseToken(token, secret)
		if err != nil {
			deny(c, required, "invalid session")
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		if claims.SessionID != "" {
			c.Set(ContextSessionIDKey, claims.SessionID)
		}
		if claims.Email != "" {
			c.Set("user_email", claims.Email)
		}
		c.Next()
	}
}

func deny(c *gin.Context, required bool, message string) {
	if !required {
		c.Next()
		return
	}
	response.Error(c, http.StatusUnauthorized, "unauthorized", message)
	c.Abort()
}

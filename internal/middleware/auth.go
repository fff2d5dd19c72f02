package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LoginChecker reports whether the backend session is authenticated.
type LoginChecker interface {
	IsLoggedIn() bool
}

// SessionGate rejects requests while the client holds no authenticated session.
func SessionGate(session LoginChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.IsLoggedIn() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
)

// CheckAttemptLogin validates the JWT's JTI against the latest login in Redis.
// A stale JTI means the student logged in again elsewhere or an admin reset
// the login, and the old token must stop working.
func CheckAttemptLogin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforce for attempt tokens.
		if claims.TokenType != service.TokenTypeAttempt {
			c.Next()
			return
		}

		if err := authService.ValidateAttemptLogin(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pulsehr/tools/errs"
	"pulsehr/tools/security"
)

// CtxUserKey is where the authenticated user id lands in the gin context.
const CtxUserKey = "authUserId"

// Auth validates the bearer token and stores the subject user id for the
// handlers downstream.
func Auth(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}
		userID, err := security.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired.WithDetail(err.Error()))
			return
		}
		c.Set(CtxUserKey, userID)
		c.Next()
	}
}

// AuthUser reads the authenticated user id set by Auth.
func AuthUser(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}

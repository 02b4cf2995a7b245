package middlewares

import (
	"net/http"

	"github.com/geocoder89/taskhub/internal/gate"
	"github.com/gin-gonic/gin"
)

const loginEntryPoint = "/auth/login"

// AccessGate runs after ExtractClaims on every request. It classifies the
// path, evaluates the claim against the class and nothing else, and denies
// with the login entry point as the place to go. An unapproved caller gets
// the same shape of denial as an anonymous one beyond the status code; the
// login page separates the two through /check-approval.
func AccessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := ClaimsFromContext(c)

		switch gate.Check(c.Request.URL.Path, claims) {
		case gate.Allow:
			c.Next()

		case gate.DenyAnonymous:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":     "unauthorized",
					"message":  "Authentication required",
					"location": loginEntryPoint,
				},
			})

		case gate.DenyForbidden:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":     "forbidden",
					"message":  "Insufficient role or approval",
					"location": loginEntryPoint,
				},
			})
		}
	}
}

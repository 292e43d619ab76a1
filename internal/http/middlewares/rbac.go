package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Require is the route guard. The permission check itself lives in the
// policy package; routes pass the relevant decision method (for example
// CanManageCatalog) so the guard never compares role strings inline.
func (m *AuthMiddleware) Require(permitted func(role string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}
		if !permitted(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "You do not have permission to perform this action",
				},
			})
			return
		}
		c.Next()
	}
}

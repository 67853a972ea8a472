package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dinver-app/dinver-sub009/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminJWT guards the operator endpoints. Expects "Authorization: Bearer
// <token>" signed with the shared secret; the admin id lands in the gin
// context as "admin_id".
func AdminJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		adminID, err := service.ParseAdminJWT(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("admin_id", strconv.FormatInt(adminID, 10))
		c.Next()
	}
}

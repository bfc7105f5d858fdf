package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geotasks/api/internal/model"
)

// CurrentUserKey 认证中间件写入当前用户的上下文键
const CurrentUserKey = "user"

// RequireRole 要求当前用户拥有任一指定角色，需挂在认证中间件之后
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *gin.Context) {
		value, exists := c.Get(CurrentUserKey)
		user, ok := value.(*model.User)
		if !exists || !ok || user == nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
			return
		}

		if !allowed[user.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions"})
			return
		}

		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/Su5hant/sow-backend/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// UserEmailKey 是认证中间件写入 gin 上下文的键。
const UserEmailKey = "userEmail"

// AuthMiddleware 校验 Bearer Access Token 并将账号邮箱写入上下文。
//
// 所有受保护的路由共用这一个关口；账号状态（是否存在 / 是否启用）
// 由各 Handler 在取用户时再校验。
func AuthMiddleware(codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			c.Abort()
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}

		email, ok := codec.Verify(parts[1], token.TypeAccess)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
			c.Abort()
			return
		}

		c.Set(UserEmailKey, email)
		c.Next()
	}
}

// UserEmail 从上下文取出认证邮箱。
func UserEmail(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok && email != ""
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	UserRefHeader = "X-User-Ref"
	userRefKey    = "user_ref"
)

// UserRef 從 header 取出呼叫者識別，存進 gin context
func UserRef() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ref := strings.TrimSpace(c.GetHeader(UserRefHeader)); ref != "" {
			c.Set(userRefKey, ref)
		}
		c.Next()
	}
}

// RequireUserRef 沒有 user_ref 直接回 401
func RequireUserRef() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserRef(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing " + UserRefHeader + " header"})
			return
		}
		c.Next()
	}
}

// CurrentUserRef 未登入時回傳空字串
func CurrentUserRef(c *gin.Context) string {
	if ref := c.GetString(userRefKey); ref != "" {
		return ref
	}
	// 沒掛 UserRef middleware 的路由也能讀到
	return strings.TrimSpace(c.GetHeader(UserRefHeader))
}

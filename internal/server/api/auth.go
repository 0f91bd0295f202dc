package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin 校验 query 参数 token 或请求头 X-Auth-Token。
// tokens 为空时不做鉴权。
func RequireAdmin(tokens []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(tokens) == 0 {
			c.Next()
			return
		}
		got := c.Query("token")
		if got == "" {
			got = c.GetHeader("X-Auth-Token")
		}
		for _, t := range tokens {
			if t != "" && subtle.ConstantTimeCompare([]byte(got), []byte(t)) == 1 {
				c.Next()
				return
			}
		}
		logAccessDenied(c)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

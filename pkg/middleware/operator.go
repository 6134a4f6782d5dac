package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/favorite-notify/pkg/response"
)

const OperatorTokenHeader = "X-Operator-Token"

// Operator 校验运维 token；未配置 token 时一律拒绝
func Operator(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(OperatorTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Forbidden(c, "operator token required")
			return
		}
		c.Next()
	}
}

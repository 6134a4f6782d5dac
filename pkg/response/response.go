package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/favorite-notify/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: message})
}

func BadRequest(c *gin.Context, message string)   { Error(c, http.StatusBadRequest, message) }
func Unauthorized(c *gin.Context, message string) { Error(c, http.StatusUnauthorized, message) }
func Forbidden(c *gin.Context, message string)    { Error(c, http.StatusForbidden, message) }
func NotFound(c *gin.Context, message string)     { Error(c, http.StatusNotFound, message) }

// UnprocessableEntity 业务规则校验失败（如重复收藏）
func UnprocessableEntity(c *gin.Context, message string) {
	Error(c, http.StatusUnprocessableEntity, message)
}

// InternalError 记录错误并返回 500，不把内部错误细节暴露给调用方
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, "internal server error")
}

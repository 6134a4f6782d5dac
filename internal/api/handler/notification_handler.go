package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/favorite-notify/pkg/middleware"
	"github.com/d60-Lab/favorite-notify/pkg/response"
)

// ListNotifications 我的通知
// @Summary 我的站内通知（新到旧）
// @Tags 通知
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	page, pageSize := pagination(c)
	list, err := h.notifications.ListByUser(c.Request.Context(), uid, (page-1)*pageSize, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

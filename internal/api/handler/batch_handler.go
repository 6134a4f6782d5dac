package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/pkg/response"
)

// GetBatch 通知批次进度
// @Summary 查询通知批次
// @Tags 运维
// @Param X-Operator-Token header string true "运维 token"
// @Param id path string true "批次ID"
// @Success 200 {object} response.Response{data=fanout.Batch}
// @Failure 404 {object} response.Response
// @Router /api/v1/ops/batches/{id} [get]
func (h *Handler) GetBatch(c *gin.Context) {
	b, err := h.batches.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, fanout.ErrBatchNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, b)
}

// CancelBatch 取消批次；尚未执行的单元变为空操作，已发出的通知不会撤回
// @Summary 取消通知批次
// @Tags 运维
// @Param X-Operator-Token header string true "运维 token"
// @Param id path string true "批次ID"
// @Success 200 {object} response.Response{data=fanout.Batch}
// @Failure 404 {object} response.Response
// @Router /api/v1/ops/batches/{id}/cancel [post]
func (h *Handler) CancelBatch(c *gin.Context) {
	b, err := h.batches.Cancel(c.Request.Context(), c.Param("id"))
	if errors.Is(err, fanout.ErrBatchNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, b)
}

package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/favorite-notify/internal/model"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/service"
	"github.com/d60-Lab/favorite-notify/pkg/middleware"
	"github.com/d60-Lab/favorite-notify/pkg/response"
)

type favoriteRequest struct {
	Type model.TargetKind `json:"type" binding:"required,oneof=user post"`
	ID   uint64           `json:"id" binding:"required"`
}

// MarkFavorite 收藏用户或帖子
// @Summary 收藏
// @Description 收藏类型为 user 时即关注该作者，之后其新帖会通知你
// @Tags 收藏
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body favoriteRequest true "收藏目标"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/favorites [post]
func (h *Handler) MarkFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	uid, _ := middleware.UserID(c)
	target := model.Target{Kind: req.Type, ID: req.ID}
	err := h.favoriteService.Mark(c.Request.Context(), uid, target)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, target.String()+" not found")
	case errors.Is(err, service.ErrFavoriteSelf), errors.Is(err, service.ErrAlreadyFavorited):
		response.UnprocessableEntity(c, service.Reason(err))
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Created(c, gin.H{"type": target.Kind, "id": target.ID})
	}
}

// UnmarkFavorite 取消收藏
// @Summary 取消收藏
// @Tags 收藏
// @Security BearerAuth
// @Param type path string true "收藏类型" Enums(user, post)
// @Param id path int true "目标ID"
// @Success 204
// @Router /api/v1/favorites/{type}/{id} [delete]
func (h *Handler) UnmarkFavorite(c *gin.Context) {
	kind := model.TargetKind(c.Param("type"))
	id, ok := pathID(c, "id")
	if !kind.Valid() || !ok {
		response.BadRequest(c, "invalid favorite target")
		return
	}
	uid, _ := middleware.UserID(c)
	if err := h.favoriteService.Unmark(c.Request.Context(), uid, model.Target{Kind: kind, ID: id}); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// ListFavorites 我的收藏，按 posts / users 分组
// @Summary 我的收藏
// @Tags 收藏
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/favorites [get]
func (h *Handler) ListFavorites(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	page, pageSize := pagination(c)
	list, err := h.favoriteService.List(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "posts": list.Posts, "users": list.Users})
}

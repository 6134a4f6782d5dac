package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/service"
	"github.com/d60-Lab/favorite-notify/pkg/middleware"
	"github.com/d60-Lab/favorite-notify/pkg/response"
)

type postRequest struct {
	Title string `json:"title" binding:"required,notblank,max=255"`
	Body  string `json:"body" binding:"required,notblank"`
}

// CreatePost 发帖；收藏了作者的用户会异步收到通知
// @Summary 发布帖子
// @Tags 帖子
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body postRequest true "帖子内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	uid, _ := middleware.UserID(c)
	post, err := h.postService.Create(c.Request.Context(), uid, req.Title, req.Body)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, post)
}

// UpdatePost 修改帖子
// @Summary 修改帖子（仅作者）
// @Tags 帖子
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "帖子ID"
// @Param request body postRequest true "帖子内容"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid post id")
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	uid, _ := middleware.UserID(c)
	post, err := h.postService.Update(c.Request.Context(), uid, id, req.Title, req.Body)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, "post not found")
	case errors.Is(err, service.ErrNotPostAuthor):
		response.Forbidden(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Success(c, post)
	}
}

// ListPosts 帖子列表
// @Summary 帖子列表（新到旧）
// @Tags 帖子
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	page, pageSize := pagination(c)
	list, err := h.postService.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// DeletePost 删除帖子
// @Summary 删除帖子（仅作者）
// @Tags 帖子
// @Security BearerAuth
// @Param id path int true "帖子ID"
// @Success 204
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid post id")
		return
	}
	uid, _ := middleware.UserID(c)
	err := h.postService.Delete(c.Request.Context(), uid, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, "post not found")
	case errors.Is(err, service.ErrNotPostAuthor):
		response.Forbidden(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.NoContent(c)
	}
}

// GetPost 帖子详情
// @Summary 帖子详情
// @Tags 帖子
// @Param id path int true "帖子ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid post id")
		return
	}
	post, err := h.postService.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "post not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, post)
}

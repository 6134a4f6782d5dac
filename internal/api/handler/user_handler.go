package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/service"
	"github.com/d60-Lab/favorite-notify/pkg/middleware"
	"github.com/d60-Lab/favorite-notify/pkg/response"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required,notblank,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register 注册
// @Summary 注册用户
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 201 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.userService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if errors.Is(err, service.ErrEmailTaken) {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, u)
}

// Login 登录
// @Summary 登录并获取 token
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录信息"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, u, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredential) {
		response.Unauthorized(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token, "user": u})
}

// Me 当前用户
// @Summary 当前登录用户
// @Tags 用户
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.User}
// @Router /api/v1/users/me [get]
func (h *Handler) Me(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	u, err := h.userService.Get(c.Request.Context(), uid)
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, u)
}

package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/favorite-notify/internal/fanout"
	"github.com/d60-Lab/favorite-notify/internal/repository"
	"github.com/d60-Lab/favorite-notify/internal/service"
)

// Handler 聚合 HTTP 处理器依赖
type Handler struct {
	userService     *service.UserService
	postService     *service.PostService
	favoriteService service.FavoriteService
	notifications   repository.NotificationRepository
	batches         *fanout.Coordinator
}

func New(
	userService *service.UserService,
	postService *service.PostService,
	favoriteService service.FavoriteService,
	notifications repository.NotificationRepository,
	batches *fanout.Coordinator,
) *Handler {
	return &Handler{
		userService:     userService,
		postService:     postService,
		favoriteService: favoriteService,
		notifications:   notifications,
		batches:         batches,
	}
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

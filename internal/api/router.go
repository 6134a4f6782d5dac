// Package api wires the HTTP surface: middleware, routes and swagger.
package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/favorite-notify/internal/api/handler"
	"github.com/d60-Lab/favorite-notify/pkg/middleware"

	_ "github.com/d60-Lab/favorite-notify/docs"
)

type RouterConfig struct {
	Mode          string
	ServiceName   string
	OperatorToken string
	Tracing       bool
}

func NewRouter(cfg RouterConfig, h *handler.Handler, issuer *middleware.TokenIssuer) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logger(), gzip.Gzip(gzip.DefaultCompression))
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)

		v1.GET("/posts", h.ListPosts)
		v1.GET("/posts/:id", h.GetPost)

		authed := v1.Group("", middleware.Auth(issuer))
		authed.GET("/users/me", h.Me)
		authed.POST("/posts", h.CreatePost)
		authed.PUT("/posts/:id", h.UpdatePost)
		authed.DELETE("/posts/:id", h.DeletePost)
		authed.POST("/favorites", h.MarkFavorite)
		authed.GET("/favorites", h.ListFavorites)
		authed.DELETE("/favorites/:type/:id", h.UnmarkFavorite)
		authed.GET("/notifications", h.ListNotifications)

		ops := v1.Group("/ops", middleware.Operator(cfg.OperatorToken))
		ops.GET("/batches/:id", h.GetBatch)
		ops.POST("/batches/:id/cancel", h.CancelBatch)
	}
	return r
}

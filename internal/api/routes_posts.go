package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/handlers"
	"github.com/charlesng35/solite/internal/middleware"
)

func registerPostRoutes(api *gin.RouterGroup, deps Dependencies, requireAuth gin.HandlerFunc) error {
	handler, err := handlers.NewPostHandler(deps.Posts)
	if err != nil {
		return err
	}

	group := api.Group("/posts")
	{
		group.GET("", handler.List)
		group.POST("", requireAuth, middleware.BodyLimit(deps.Config.Storage.MaxUploadBytes), handler.Create)
		group.GET("/user/:userId", handler.ListByUser)
		group.GET("/:id", handler.Get)
	}
	return nil
}

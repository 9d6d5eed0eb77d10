package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/handlers"
	"github.com/charlesng35/solite/internal/middleware"
)

func registerNotificationRoutes(api *gin.RouterGroup, deps Dependencies, requireAuth gin.HandlerFunc) error {
	handler, err := handlers.NewNotificationHandler(deps.Notifications, deps.Stream)
	if err != nil {
		return err
	}

	group := api.Group("/notifications")
	{
		group.GET("/stream", middleware.Auth(deps.JWT, middleware.AllowQueryToken("token")), handler.Stream)

		group.POST("", requireAuth, handler.Create)
		group.GET("", requireAuth, handler.List)
		group.PUT("/:id/markAsSeen", requireAuth, handler.MarkSeen)
	}
	return nil
}

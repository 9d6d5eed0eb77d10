package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/handlers"
	"github.com/charlesng35/solite/internal/middleware"
)

func registerUserRoutes(api *gin.RouterGroup, deps Dependencies, requireAuth gin.HandlerFunc) error {
	authHandler, err := handlers.NewAuthHandler(deps.Users)
	if err != nil {
		return err
	}
	userHandler, err := handlers.NewUserHandler(deps.Users)
	if err != nil {
		return err
	}

	limit := middleware.RateLimitWithStore(deps.RateStore, credentialRateLimit, credentialRateWindow)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", limit, authHandler.Signup)
		auth.POST("/signin", limit, authHandler.Signin)
		auth.GET("/me", requireAuth, authHandler.Me)

		auth.GET("/users", userHandler.List)
		auth.GET("/users/:id/email", userHandler.GetEmail)
	}
	return nil
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/app"
	"github.com/charlesng35/solite/internal/handlers"
)

var healthPaths = []string{"/health", "/api/health"}

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, checks []handlers.HealthCheck) {
	health := handlers.Health(cfg.Server.Service, checks...)
	for _, path := range healthPaths {
		r.GET(path, health)
	}
}

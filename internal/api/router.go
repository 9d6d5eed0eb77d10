package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/app"
	"github.com/charlesng35/solite/internal/handlers"
	"github.com/charlesng35/solite/internal/middleware"
	"github.com/charlesng35/solite/internal/services"
)

// credentialRateLimit bounds sign-up and sign-in attempts per client and route.
const (
	credentialRateLimit  = 20
	credentialRateWindow = time.Minute
)

// Dependencies are the services a router can expose. A nil service leaves its
// routes unregistered, which is how a single binary runs one service at a time.
type Dependencies struct {
	Config        *app.Config
	JWT           middleware.TokenValidator
	Users         *services.UserService
	Posts         *services.PostService
	Notifications *services.NotificationService
	Stream        handlers.StreamServer
	RateStore     middleware.RateStore
	HealthChecks  []handlers.HealthCheck
}

// NewRouter builds the Gin engine, wires middleware and registers the routes of
// every service present in deps.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("router: config must be provided")
	}
	if deps.JWT == nil {
		return nil, errors.New("router: token validator must be provided")
	}
	if deps.RateStore == nil {
		deps.RateStore = middleware.NewMemoryRateStore()
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(append([]string{metricsEndpoint(cfg)}, healthPaths...)...))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins...))

	registerHealthRoutes(r, cfg, deps.HealthChecks)
	registerMetricsRoutes(r, cfg)

	requireAuth := middleware.Auth(deps.JWT)
	api := r.Group("/api")

	if deps.Users != nil {
		if err := registerUserRoutes(api, deps, requireAuth); err != nil {
			return nil, err
		}
	}
	if deps.Posts != nil {
		if err := registerPostRoutes(api, deps, requireAuth); err != nil {
			return nil, err
		}
	}
	if deps.Notifications != nil {
		if err := registerNotificationRoutes(api, deps, requireAuth); err != nil {
			return nil, err
		}
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

package http

import (
	"net/http"

	"rillcall/internal/core/ports"
	"rillcall/internal/core/services"
	"rillcall/internal/infrastructure/middleware"
	"rillcall/internal/infrastructure/monitoring"
	"rillcall/pkg/config"
	"rillcall/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps are the collaborators of the UI surface. Notifications and
// Metrics are optional.
type RouterDeps struct {
	Config        *config.Config
	Calls         ports.CallService
	Presence      ports.PresenceDirectory
	Auth          services.AuthService
	Health        *monitoring.HealthChecker
	Notifications http.HandlerFunc
	Metrics       http.Handler
	Logger        *zap.SugaredLogger
}

// NewRouter builds the gin engine serving the local UI.
func NewRouter(deps RouterDeps) *gin.Engine {
	cl := logger.NewContextLogger(deps.Logger)

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(deps.Logger),
		middleware.TracingMiddleware(cl),
		middleware.NewHTTPRateLimitMiddleware(deps.Config),
		middleware.ErrorHandlerMiddleware(cl),
	)

	health := NewHealthHandler(deps.Health)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(deps.Auth, deps.Calls.Self()))

	NewCallHandler(deps.Calls, deps.Presence).SetupRoutes(api)
	NewAuthHandler(deps.Auth, deps.Config.Auth.AccessTokenTTL).SetupRoutes(api)
	if deps.Notifications != nil {
		api.GET("/ws/notifications", gin.WrapF(deps.Notifications))
	}

	return router
}

package api

import (
	"strings"

	"github.com/driveindex/driveindex/internal/auth"
	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/health"
	"github.com/driveindex/driveindex/internal/offline"
	"github.com/driveindex/driveindex/internal/scheduler"
	"github.com/driveindex/driveindex/internal/settings"
)

const callbackPrefix = "/offline/complete/"

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	// The daemon's completion hook authenticates with the token in its path.
	offlineHandlers := offline.NewHandlers(s.offlineService)
	offlineHandlers.RegisterCallback(s.echo.Group("/offline"))

	api := s.echo.Group("/api/v1")

	authHandlers := auth.NewHandlers(s.authService)
	authHandlers.SetLockoutChecker(s.limiter)
	authHandlers.RegisterRoutes(api.Group("/auth", s.limiter.Middleware()))

	admin := api.Group("", auth.AdminAuth(s.authService))
	admin.GET("/status", s.getStatus)

	offlineHandlers.RegisterRoutes(admin.Group("/offline"))
	settings.NewHandlers(s.settingsService).RegisterRoutes(admin.Group("/settings"))
	cache.NewHandlers(s.cacheService).RegisterRoutes(admin.Group("/cache"))
	health.NewHandlers(s.healthService).RegisterRoutes(admin.Group("/health"))

	if s.scheduler != nil {
		scheduler.NewHandlers(s.scheduler).RegisterRoutes(admin.Group("/scheduler"))
	}
	if s.logs != nil {
		NewLogsHandlers(s.logs).RegisterRoutes(admin.Group("/logs"))
	}
	if s.hub != nil {
		admin.GET("/ws", s.hub.HandleWebSocket)
	}
}

// redactCallback hides the callback secret in logged URIs.
func redactCallback(uri string) string {
	rest, ok := strings.CutPrefix(uri, callbackPrefix)
	if !ok {
		return uri
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return callbackPrefix + "***" + rest[i:]
	}
	return callbackPrefix + "***"
}

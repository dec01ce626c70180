package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/driveindex/driveindex/internal/config"
)

const daemonStatusTimeout = 3 * time.Second

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports version, daemon reachability and queue depth.
// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	resp := map[string]any{
		"version":        config.Version,
		"uploadsPending": s.dispatcher.Pending(),
		"healthy":        s.healthService.Summary().Healthy,
	}

	if daemon := s.currentDaemon(); daemon != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), daemonStatusTimeout)
		defer cancel()

		resp["daemonUrl"] = daemon.Config().URL()
		if v, err := daemon.GetVersion(ctx); err != nil {
			resp["daemonError"] = err.Error()
		} else {
			resp["daemonVersion"] = v
		}
	}

	if s.hub != nil {
		resp["clients"] = s.hub.ClientCount()
	}

	return c.JSON(http.StatusOK, resp)
}

package cache

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/clear", h.Clear)
	g.POST("/refresh", h.Refresh)
}

// Clear empties the caches
// POST /api/v1/cache/clear
func (h *Handlers) Clear(c echo.Context) error {
	n := h.service.Clear()
	return c.JSON(http.StatusOK, map[string]int{"cleared": n})
}

// Refresh clears the caches and rebuilds derived state
// POST /api/v1/cache/refresh
func (h *Handlers) Refresh(c echo.Context) error {
	queued, err := h.service.Refresh(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if queued {
		return c.JSON(http.StatusAccepted, map[string]bool{"queued": true})
	}
	return c.JSON(http.StatusOK, map[string]bool{"queued": false})
}

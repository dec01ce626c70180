package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for component health.
type Handlers struct {
	health *Service
}

// NewHandlers creates new health handlers.
func NewHandlers(health *Service) *Handlers {
	return &Handlers{health: health}
}

// RegisterRoutes registers the health routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetAll)
	g.POST("/check", h.CheckAll)
	g.POST("/:id/check", h.CheckOne)
}

// GetAll returns the last known state of every component.
// GET /api/v1/health
func (h *Handlers) GetAll(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.Summary())
}

// CheckAll runs every check now.
// POST /api/v1/health/check
func (h *Handlers) CheckAll(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.CheckAll(c.Request().Context()))
}

// CheckOne runs a single component's check now.
// POST /api/v1/health/:id/check
func (h *Handlers) CheckOne(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.health.Get(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown component")
	}
	_ = h.health.Check(c.Request().Context(), id)
	item, _ := h.health.Get(id)
	return c.JSON(http.StatusOK, item)
}

package offline

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/driveindex/driveindex/internal/aria2"
	"github.com/driveindex/driveindex/internal/upload"
)

// Plain-text bodies of the completion callback.
const (
	callbackUnauthorized = "unauthrized"
	callbackDone         = "all files uploaded"
	callbackNotFound     = "gid not found"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the admin routes. They expect auth middleware on g.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Submit)
	g.GET("/jobs", h.Jobs)
	g.POST("/action", h.Control)
	g.POST("/sweep", h.Sweep)
}

// RegisterCallback registers the daemon completion callback, which carries
// its own token and must not sit behind admin auth.
func (h *Handlers) RegisterCallback(g *echo.Group) {
	g.GET("/complete/:token/:gid", h.Complete)
	g.POST("/complete/:token/:gid", h.Complete)
}

// List returns the combined download listing
// GET /api/v1/offline
func (h *Handlers) List(c echo.Context) error {
	rows, err := h.service.List(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

// Jobs returns the stored jobs
// GET /api/v1/offline/jobs
func (h *Handlers) Jobs(c echo.Context) error {
	jobs, err := h.service.Jobs(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// Submit starts a new download
// POST /api/v1/offline
func (h *Handlers) Submit(c echo.Context) error {
	var input SubmitInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	job, err := h.service.Submit(c.Request().Context(), input)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, job)
}

// Control pauses, resumes or deletes a download
// POST /api/v1/offline/action
func (h *Handlers) Control(c echo.Context) error {
	var input ControlInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.service.Control(c.Request().Context(), input); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Sweep runs the failed/completed download sweep on demand
// POST /api/v1/offline/sweep
func (h *Handlers) Sweep(c echo.Context) error {
	res, err := h.service.Sweep(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// Complete is called by the daemon hook when a download finishes
// GET|POST /offline/complete/:token/:gid
func (h *Handlers) Complete(c echo.Context) error {
	_, err := h.service.Complete(c.Request().Context(), c.Param("token"), c.Param("gid"))
	switch {
	case err == nil:
		return c.String(http.StatusOK, callbackDone)
	case errors.Is(err, ErrUnauthorized):
		return c.String(http.StatusUnauthorized, callbackUnauthorized)
	case errors.Is(err, ErrGIDNotFound):
		return c.String(http.StatusNotFound, callbackNotFound)
	default:
		he := toHTTPError(err)
		return c.String(he.Code, he.Message.(string))
	}
}

func toHTTPError(err error) *echo.HTTPError {
	var ve *ValidationError
	var de *aria2.DaemonError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrJobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "download not found")
	case errors.Is(err, ErrGIDNotFound):
		return echo.NewHTTPError(http.StatusNotFound, callbackNotFound)
	case errors.Is(err, ErrDaemonNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, upload.ErrQueueFull), errors.Is(err, upload.ErrNotRunning):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &de):
		return echo.NewHTTPError(http.StatusBadGateway, "download daemon error: "+de.Message)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

package scheduler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers exposes the registered tasks to the admin API.
type Handlers struct {
	sched *Scheduler
}

func NewHandlers(sched *Scheduler) *Handlers {
	return &Handlers{sched: sched}
}

// RegisterRoutes registers the task routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/tasks", h.List)
	g.GET("/tasks/:id", h.Get)
	g.POST("/tasks/:id/run", h.Run)
}

// List returns every task ordered by id.
// GET /api/v1/scheduler/tasks
func (h *Handlers) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sched.ListTasks())
}

// GET /api/v1/scheduler/tasks/:id
func (h *Handlers) Get(c echo.Context) error {
	info, err := h.sched.GetTask(c.Param("id"))
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// Run starts a task outside its schedule and answers with its state at the
// moment it was queued.
// POST /api/v1/scheduler/tasks/:id/run
func (h *Handlers) Run(c echo.Context) error {
	id := c.Param("id")
	if err := h.sched.RunNow(id); err != nil {
		return taskError(err)
	}
	info, err := h.sched.GetTask(id)
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusAccepted, info)
}

func taskError(err error) error {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	case errors.Is(err, ErrTaskRunning):
		return echo.NewHTTPError(http.StatusConflict, "task is already running")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
